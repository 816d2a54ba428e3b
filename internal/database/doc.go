// Package database is the persistent-storage core of media-shelf.
//
// A single Database value owns the SQLite file and everything in it:
//   - user accounts, bcrypt password hashes and session tokens
//   - the path registry, a bijective mapping between media paths and opaque ids
//   - the thumbnail cache, one blob per registered id
//
// Every operation is funneled through one mutex (the access serializer), so
// at most one statement or transaction runs against the connection at a
// time, whether the connection is held for the lifetime of the Database
// (persistent mode) or opened per operation (transient mode).
//
// Lookups report a miss as ok == false rather than as an error. Writes that
// collide with a unique index return an error matching ErrUniqueViolation.
package database
