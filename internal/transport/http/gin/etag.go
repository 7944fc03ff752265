package httpgin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// cachedJSON writes v as JSON with a validator derived from the encoded body
// and a public max-age. A matching If-None-Match short-circuits to 304. The
// tag is weak: the cacheable reads are availability snapshots, and two
// encodings of the same snapshot are equivalent for revalidation.
func cachedJSON(c *gin.Context, status int, maxAge time.Duration, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	sum := sha256.Sum256(body)
	tag := `W/"` + hex.EncodeToString(sum[:]) + `"`

	c.Header("ETag", tag)
	if maxAge > 0 {
		c.Header("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	}

	if inm := c.GetHeader("If-None-Match"); inm != "" && etagMatch(inm, tag) {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(status, "application/json; charset=utf-8", body)
}

// etagMatch applies weak comparison against a comma-separated If-None-Match
// list, including the "*" wildcard.
func etagMatch(header, tag string) bool {
	tag = strings.TrimPrefix(tag, "W/")
	for _, cand := range strings.Split(header, ",") {
		cand = strings.TrimSpace(cand)
		if cand == "*" || strings.TrimPrefix(cand, "W/") == tag {
			return true
		}
	}
	return false
}
