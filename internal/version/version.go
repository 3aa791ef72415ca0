// Package version holds build information for the hybridserver binary.
package version

// Set at build time with
// -ldflags "-X hybridserver/internal/version.Commit=$(git rev-parse HEAD)".
var (
	Version   = "1.0.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns the version with an abbreviated commit when one is known.
func Info() string {
	if len(Commit) > 7 && Commit != "unknown" {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Product is the value sent in the Server response header.
func Product() string {
	return "HybridServer/" + Version
}

// Full returns the multi-line output of the version command.
func Full() string {
	return "Hybrid Server " + Info() + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
