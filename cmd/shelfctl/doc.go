// Command shelfctl administers a media shelf database from the command line.
//
// Usage:
//
//	shelfctl [--db DIR] [--log-level LEVEL] <command> [flags] [args]
//
// Commands:
//
//	users                         List user accounts.
//	adduser [--admin] <username>  Create an account.
//	passwd <username>             Replace a password. The user's current
//	                              session token is revoked.
//	deluser <username>            Delete an account.
//	index [--media DIR]           Register new titles and items.
//	optimize [--vacuum]           Drop ids of vanished paths and orphaned
//	                              thumbnails, then compact the file.
//	status                        Print row counts.
//
// Passwords come from --password, an interactive prompt when stdin is a
// terminal, or the first line of piped input.
//
// Environment:
//
//	DATABASE_DIR - Path to database directory (default: /database)
//	MEDIA_DIR    - Path to media directory for index (default: /media)
//
// The server may keep running while shelfctl is used; SQLite's busy
// timeout serializes the two processes.
package main
