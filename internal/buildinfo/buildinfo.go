// Package buildinfo carries version data set with -ldflags at build time.
package buildinfo

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info is the build identity reported by /healthz and the build_info metric.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	BuiltAt string `json:"built_at,omitempty"`
}

func Get() Info {
	return Info{Version: Version, Commit: Commit, BuiltAt: BuiltAt}
}

func (i Info) String() string {
	s := i.Version
	if i.Commit != "" {
		s += " (" + i.Commit + ")"
	}
	return s
}
