// Package assets bundles the daemon's configuration template and plugins.
//
// Release builds copy the daemon executable into the hekad directory before
// compiling so it is embedded alongside them.
package assets

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed hekad
var bundle embed.FS

// Bundle returns the asset tree. When dir is set, assets are read from
// dir instead; it must contain the same hekad/ layout.
func Bundle(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return bundle
}
