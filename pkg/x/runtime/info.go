// Package runtime exposes build provenance for the admin `/internal/version`
// endpoint, adapted from the teacher's pkg/x/runtime/info.go.
package runtime

import (
	"runtime"
	"runtime/debug"

	"github.com/nodewire/originserver/internal/constants"
)

// Info is the build provenance payload served at /internal/version.
type Info struct {
	AppName     string `json:"app.name"`
	GoVersion   string `json:"go.version"`
	GoArch      string `json:"go.arch"`
	Vcs         string `json:"vcs"`
	VcsRevision string `json:"vcs.revision"`
	VcsTime     string `json:"vcs.time"`
	Dirty       bool   `json:"dirty"`
}

// BuildInfo is populated once at process start from runtime/debug.
var BuildInfo Info

func init() {
	BuildInfo.AppName = constants.AppName
	BuildInfo.GoVersion = runtime.Version()
	BuildInfo.GoArch = runtime.GOARCH

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs":
			BuildInfo.Vcs = kv.Value
		case "vcs.revision":
			rev := kv.Value
			if len(rev) > 8 {
				rev = rev[:8]
			}
			BuildInfo.VcsRevision = rev
		case "vcs.time":
			BuildInfo.VcsTime = kv.Value
		case "vcs.modified":
			BuildInfo.Dirty = kv.Value == "true"
		}
	}
}
