// Command buildlog inspects the index database written by media-indexer.
//
// Usage:
//
//	buildlog <command> [flags]
//
// Commands:
//
//	errors  List the most recent build errors, newest first.
//	        -n N limits the list (default 20).
//	clear   Delete every recorded build error. Asks for confirmation
//	        when stdin is a terminal unless -y is given.
//	stats   Show media totals and database file sizes.
//
// Environment:
//
//	INDEX_DB_PATH - Path to the index database file (required unless -db is given)
package main
