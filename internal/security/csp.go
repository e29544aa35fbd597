package security

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// apiPolicy allows nothing to execute; responses are JSON, SVG samples and
// processed PNGs.
const apiPolicy = "default-src 'none'; img-src 'self' data:; style-src 'unsafe-inline'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

// CSPMiddleware sets a locked-down Content-Security-Policy. Paths under any
// of exempt keep no policy (the swagger UI ships inline scripts).
func CSPMiddleware(exempt ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range exempt {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		c.Header("Content-Security-Policy", apiPolicy)
		c.Next()
	}
}
