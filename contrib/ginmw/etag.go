// Package ginmw is a thin gin middleware that turns the cache reads a
// handler made during one request into ETag/Cache-Control response
// headers, the HTTP-framework collaborator spec §4.9 describes as an
// external consumer of the context cache-detect stack.
package ginmw

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/fluxkv/fluxkv/internal/facade"
	"github.com/gin-gonic/gin"
)

// CacheHeaders installs a facade.Detector on every request's context and,
// once the handler returns, sets Cache-Control (from the shortest TTL any
// cache read recorded) and an ETag derived from the set of keys the
// handler actually touched.
func CacheHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, detector := facade.WithDetect(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		entries := detector.Entries()
		if len(entries) == 0 {
			return
		}

		if maxAge := detector.MinExpire(); maxAge > 0 {
			c.Header("Cache-Control", fmt.Sprintf("max-age=%d", int(maxAge.Seconds())))
		}
		c.Header("ETag", etagFor(entries))
	}
}

func etagFor(entries []facade.DetectEntry) string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	sum := sha1.Sum([]byte(strings.Join(keys, "\x00")))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
