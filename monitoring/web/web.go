// Package web ships the static dashboard page of the monitoring tool.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"
)

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the dashboard assets. In development mode the assets are
// served from the source tree, so edits show up without rebuilding; otherwise
// the embedded copies are used.
func GetAssets() http.FileSystem {
	if isDevelopmentMode() {
		_, thisFile, _, ok := runtime.Caller(1)
		if !ok {
			panic("error getting path")
		}

		assetPath := path.Join(path.Dir(thisFile), "dist")
		fmt.Printf(
			"In monitoring tool development mode, serving assets from %s\n",
			assetPath)

		return http.Dir(assetPath)
	}

	subFS, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(subFS)
}

// isDevelopmentMode reports whether TSUKUBA_MONITOR_DEV is set to a truthy
// value.
func isDevelopmentMode() bool {
	value, exist := os.LookupEnv("TSUKUBA_MONITOR_DEV")
	if !exist {
		return false
	}

	return strings.ToLower(value) == "true" || value == "1"
}
