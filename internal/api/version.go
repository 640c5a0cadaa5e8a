package api

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// BuildInfo is the document served on /version.
type BuildInfo struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

func newBuildInfo(version, gitCommit, buildDate string) BuildInfo {
	return BuildInfo{
		Service:   "events-api",
		Version:   orDefault(version, "dev"),
		GitCommit: orDefault(gitCommit, "unknown"),
		BuildDate: orDefault(buildDate, "unknown"),
		GoVersion: runtime.Version(),
	}
}

// VersionHandler serves build metadata set through ldflags. The router
// restricts it to GET.
func VersionHandler(version, gitCommit, buildDate string) http.Handler {
	body, _ := json.Marshal(newBuildInfo(version, gitCommit, buildDate))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(append(body, '\n'))
	})
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
