package version

// Set at build time via -ldflags "-X frameworks/almanac/pkg/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build stamp reported by the CLI and the health endpoint.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

func GetInfo() Info {
	return Info{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}
}

// ShortCommit returns the first seven characters of the commit hash.
func ShortCommit() string {
	if len(GitCommit) >= 7 {
		return GitCommit[:7]
	}
	return GitCommit
}
