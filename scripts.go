package tuindex

import (
	"embed"
	"io/fs"
)

//go:embed scripts/symbols/*.risor
var embeddedScripts embed.FS

// Scripts returns the built-in symbol scripts, rooted so that
// symbols/<language>.risor resolves.
func Scripts() fs.FS {
	sub, err := fs.Sub(embeddedScripts, "scripts")
	if err != nil {
		panic(err)
	}
	return sub
}
