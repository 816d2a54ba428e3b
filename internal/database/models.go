package database

// UserSummary is the listing view of a user account.
type UserSummary struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// PathIdentity maps a media path to its opaque identifier.
// IsTitle marks top-level titles as opposed to the items nested below them.
type PathIdentity struct {
	Path    string `json:"path"`
	ID      string `json:"id"`
	IsTitle bool   `json:"isTitle"`
}

// Thumbnail is a cached thumbnail image.
type Thumbnail struct {
	Data     []byte `json:"-"`
	Filename string `json:"filename"`
	Mime     string `json:"mime"`
	Size     int64  `json:"size"`
}

// VerifyResult is the outcome of a credential check.
type VerifyResult int

const (
	// VerifyUnknownUser means no account has the given username.
	VerifyUnknownUser VerifyResult = iota
	// VerifyMismatch means the password did not match the stored hash.
	VerifyMismatch
	// VerifyOK means the credentials were accepted and a token was returned.
	VerifyOK
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyUnknownUser:
		return "unknown_user"
	case VerifyMismatch:
		return "mismatch"
	case VerifyOK:
		return "success"
	default:
		return "invalid"
	}
}

// OptimizeReport holds the number of rows removed by Optimize.
type OptimizeReport struct {
	DanglingIDs        int   `json:"danglingIds"`
	OrphanedThumbnails int64 `json:"orphanedThumbnails"`
}

// Counts holds row counts for metrics and status output.
type Counts struct {
	Users      int `json:"users"`
	Titles     int `json:"titles"`
	Items      int `json:"items"`
	Thumbnails int `json:"thumbnails"`
	Pending    int `json:"pending"`
}
