package assets

import (
	"embed"
	"io/fs"
)

//go:embed static/*.svg
var staticFS embed.FS

// FS returns the embedded font sample images
func FS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// static is a literal directory of the embed pattern
		panic(err)
	}
	return sub
}
