/*
Package filesystem provides filesystem checks with retry logic for NFS stale
file handle errors.

The media library is commonly served from an NFS mount. When the server side
changes, a stat or open can fail with ESTALE even though the file is still
there. Treating such a failure as "file is gone" would make the maintenance
sweep delete live path registrations, so every existence check goes through
Exists, which retries ESTALE with exponential backoff and reports any other
non-NotExist error to the caller instead of guessing.

	ok, err := filesystem.Exists(path, filesystem.DefaultRetryConfig())
	if err != nil {
	    // unknown: keep the record
	}

Only ESTALE triggers a retry; every other error is returned immediately.
Metrics are recorded through an Observer installed with SetObserver (the
metrics package provides one), labeled by the volume a path belongs to as
resolved by a VolumeResolver.
*/
package filesystem
