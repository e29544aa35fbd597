package assets

import (
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/scriptmatch/internal/errors"
)

// URLPrefix is where sample images are mounted
const URLPrefix = "/assets"

// Handler serves files from fsys under URLPrefix. Routes must bind the
// remainder of the path as the "filepath" parameter.
func Handler(fsys fs.FS) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimPrefix(c.Param("filepath"), "/")

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			apperrors.Respond(c, apperrors.NewNotFoundError("Asset not found"), "")
			return
		}

		contentType := mime.TypeByExtension(path.Ext(name))
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}

		// Sample images never change for a given name
		c.Header("Cache-Control", "public, max-age=31536000, immutable")
		c.Data(http.StatusOK, contentType, data)
	}
}

// Exists reports whether urlPath (for example a Font.ImagePath) resolves
// to an embedded file.
func Exists(fsys fs.FS, urlPath string) bool {
	name, ok := strings.CutPrefix(urlPath, URLPrefix+"/")
	if !ok {
		return false
	}
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
