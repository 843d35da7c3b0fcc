package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"media-indexer/internal/database"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	defaultLimit   = 20
	// Used when stdout is not a terminal
	defaultWidth = 120
)

var errAborted = errors.New("aborted")

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	dbPath := fs.String("db", os.Getenv("INDEX_DB_PATH"), "index database file")
	limit := fs.Int("n", defaultLimit, "number of errors to list")
	yes := fs.Bool("y", false, "do not ask for confirmation")
	_ = fs.Parse(os.Args[2:])

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "Error: set INDEX_DB_PATH or pass -db")
		os.Exit(1)
	}
	// Opening creates a missing database; a typo should not leave an empty file behind.
	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: index database not found: %v\n", err)
		os.Exit(1)
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, defaultTimeout)
	defer cancelTimeout()

	db, err := database.NewIndexDB(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open index database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	switch command {
	case "errors":
		err = listErrors(ctx, db, os.Stdout, *limit, outputWidth())
	case "clear":
		confirm := func() bool { return true }
		if !*yes && term.IsTerminal(int(os.Stdin.Fd())) {
			confirm = func() bool { return askYesNo(os.Stdin, os.Stdout, "Delete all recorded build errors?") }
		}
		err = clearErrors(ctx, db, os.Stdout, confirm)
	case "stats":
		err = showStats(ctx, db, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, errAborted) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// sanitizeCommand replaces every character outside [a-zA-Z0-9_-] with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Media Indexer Build Log")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: buildlog <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  errors  - List recent build errors (-n N)")
	fmt.Fprintln(w, "  clear   - Delete all build errors (-y to skip confirmation)")
	fmt.Fprintln(w, "  stats   - Show media totals and database size")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -db PATH  Index database (default: $INDEX_DB_PATH)")
}

func outputWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}

func listErrors(ctx context.Context, db *database.IndexDB, w io.Writer, limit, width int) error {
	items, err := db.QueryErrors(ctx, limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "No build errors recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTAGE\tFILE\tMESSAGE")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			humanize.Time(item.CreatedAt),
			item.Stage,
			item.FilePath,
			truncate(singleLine(item.Message), width/3),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d error(s) shown, build %s\n", len(items), items[0].BuildID)
	return nil
}

func clearErrors(ctx context.Context, db *database.IndexDB, w io.Writer, confirm func() bool) error {
	if !confirm() {
		fmt.Fprintln(w, "Aborted.")
		return errAborted
	}
	if err := db.ClearBuildErrors(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "Build errors cleared.")
	return nil
}

func showStats(ctx context.Context, db *database.IndexDB, w io.Writer) error {
	counts, err := db.Counts(ctx)
	if err != nil {
		return err
	}
	sizes := db.FileSizes()

	fmt.Fprintf(w, "Index:        %s\n", db.Path())
	fmt.Fprintf(w, "Images:       %s\n", humanize.Comma(int64(counts.Images)))
	fmt.Fprintf(w, "Videos:       %s\n", humanize.Comma(int64(counts.Videos)))
	fmt.Fprintf(w, "Favorites:    %s\n", humanize.Comma(int64(counts.Favorites)))
	fmt.Fprintf(w, "Build errors: %s\n", humanize.Comma(int64(counts.Errors)))
	fmt.Fprintf(w, "Size:         %s (wal %s)\n", humanize.IBytes(uint64(sizes.Total())), humanize.IBytes(uint64(sizes.WAL)))
	return nil
}

func askYesNo(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if n < 4 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
