// Package logging provides a simple leveled logging interface for
// media-shelf.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The level is read once from the DEBUG and LOG_LEVEL environment variables
// and can be overridden at runtime with SetLevel (the shelfctl --log-level
// flag does this).
package logging
