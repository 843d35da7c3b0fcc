package build

import (
	"runtime/debug"
	"sync"

	"media-indexer/internal/database"
	"media-indexer/internal/logging"
)

// Observer receives build notifications. Each build delivers them in
// order on its own notification goroutine, so an observer may call
// PauseBuild, ResumeBuild, CancelBuild or StartBuild. A slow observer
// delays later notifications and Wait, not the build itself.
type Observer interface {
	OnStatus(Status)
	OnFatal(message string)
	OnErrorItem(database.BuildError)
}

// ObserverFuncs adapts functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Status    func(Status)
	Fatal     func(message string)
	ErrorItem func(database.BuildError)
}

func (f ObserverFuncs) OnStatus(s Status) {
	if f.Status != nil {
		f.Status(s)
	}
}

func (f ObserverFuncs) OnFatal(message string) {
	if f.Fatal != nil {
		f.Fatal(message)
	}
}

func (f ObserverFuncs) OnErrorItem(item database.BuildError) {
	if f.ErrorItem != nil {
		f.ErrorItem(item)
	}
}

type observerSet struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]Observer
}

func (o *observerSet) add(obs Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.subs == nil {
		o.subs = make(map[int]Observer)
	}
	id := o.nextID
	o.nextID++
	o.subs[id] = obs

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// snapshot returns the observers in subscription order.
func (o *observerSet) snapshot() []Observer {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Observer, 0, len(o.subs))
	for id := 0; id < o.nextID; id++ {
		if obs, ok := o.subs[id]; ok {
			out = append(out, obs)
		}
	}
	return out
}

func (o *observerSet) status(s Status) {
	for _, obs := range o.snapshot() {
		obs.OnStatus(s)
	}
}

func (o *observerSet) fatal(message string) {
	for _, obs := range o.snapshot() {
		obs.OnFatal(message)
	}
}

func (o *observerSet) errorItem(item database.BuildError) {
	for _, obs := range o.snapshot() {
		obs.OnErrorItem(item)
	}
}

// notifyQueue is an unbounded FIFO of notifications drained by a single
// goroutine.
type notifyQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []func()
	closed bool
}

func newNotifyQueue() *notifyQueue {
	q := &notifyQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *notifyQueue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()
	q.cond.Signal()
}

// close lets deliver return once everything pushed so far is delivered.
func (q *notifyQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *notifyQueue) deliver(log logging.Logger) {
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		items := q.items
		q.items = nil
		q.mu.Unlock()

		if len(items) == 0 {
			return
		}
		for _, fn := range items {
			callObserver(log, fn)
		}
	}
}

func callObserver(log logging.Logger, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("Observer panic: %v\n%s", p, debug.Stack())
		}
	}()
	fn()
}
