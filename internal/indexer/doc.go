// Package indexer registers the media library with the database's ID
// registry.
//
// Every entry directly under the media directory is a title (a folder or a
// single media file); media files nested below a title are its items. Each
// path seen for the first time gets a fresh opaque id, buffered through
// Enqueue and committed with Flush every 500 paths and at the end of the
// walk. A batch whose Flush fails is discarded and the walk continues, so
// one bad path costs at most one batch; the next run retries it.
//
// The indexer only adds paths. Removing ids of deleted files is the job of
// the database's Optimize pass.
//
// Runs happen once at Start, then every INDEX_INTERVAL, and on demand via
// Index or TriggerIndex. Hidden files and directories (prefixed with '.')
// are skipped.
package indexer
