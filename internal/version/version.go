package version

// Populated at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Release identifies the application series this engine manages. It is
// embedded in dump manifests and reported by server_version so clients
// can verify compatibility before restoring.
const (
	Release      = "11.0"
	MajorRelease = "11.0"
)

// ReleaseInfo is the structured form of Release, serialized into dump
// manifests as a JSON array.
var ReleaseInfo = []any{11, 0, 0, "final", 0}
