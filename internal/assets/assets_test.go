package assets

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ZanzyTHEbar/scriptmatch/internal/database"
)

func TestCatalogImagesAreEmbedded(t *testing.T) {
	fsys := FS()
	for _, font := range database.Catalog {
		assert.True(t, Exists(fsys, font.ImagePath), font.ImagePath)
	}
	assert.False(t, Exists(fsys, "/assets/comic-sans-example.svg"))
	assert.False(t, Exists(fsys, "/elsewhere/pacifico-example.svg"))
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET(URLPrefix+"/*filepath", Handler(FS()))

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"sample image", "/assets/pacifico-example.svg", http.StatusOK},
		{"missing file", "/assets/nope.svg", http.StatusNotFound},
		{"directory", "/assets/", http.StatusNotFound},
		{"traversal", "/assets/../go.mod", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
				assert.Contains(t, w.Header().Get("Cache-Control"), "immutable")
				assert.Contains(t, w.Body.String(), "Yuvarlak Hatlar")
			}
		})
	}
}
