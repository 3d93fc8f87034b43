package middleware

import (
	"context"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// QueryRef is the query parameter carrying a shared referral code.
	QueryRef = "ref"
	// HeaderVisitorID identifies an anonymous browser across requests.
	HeaderVisitorID = "X-Visitor-ID"

	ctxKeyRef     = "referral.ref"
	ctxKeyVisitor = "referral.visitor"

	maxVisitorKeyLen = 128
)

var refPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,32}$`)

// CaptureStore persists a captured code for a visitor. Failures are logged
// and never fail the request.
type CaptureStore func(ctx context.Context, visitorKey, code string) error

// ReferralCapture watches every request for a `ref` query parameter. A
// well-formed value is stashed in the Gin context (see RefFrom) and, when the
// caller has a visitor key, handed to store so a later registration can use
// it. Malformed values are ignored.
//
// The visitor key is the X-Visitor-ID header, falling back to the
// authenticated user id, so Authenticate must run first.
func ReferralCapture(store CaptureStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := visitorKey(c)
		if key != "" {
			c.Set(ctxKeyVisitor, key)
		}

		raw, present := c.GetQuery(QueryRef)
		if !present {
			c.Next()
			return
		}
		ref := strings.TrimSpace(raw)
		if !refPattern.MatchString(ref) {
			LoggerFrom(c).Debug().Int("len", len(raw)).Msg("ignoring malformed ref")
			c.Next()
			return
		}
		c.Set(ctxKeyRef, ref)

		if store != nil && key != "" {
			if err := store(c.Request.Context(), key, ref); err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("persist pending referral")
			}
		}
		c.Next()
	}
}

// RefFrom returns the validated `ref` seen on this request.
func RefFrom(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyRef)
	return s, s != ""
}

// VisitorKey returns the key pending referrals are stored under, or "".
func VisitorKey(c *gin.Context) string {
	if s := c.GetString(ctxKeyVisitor); s != "" {
		return s
	}
	return visitorKey(c)
}

func visitorKey(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader(HeaderVisitorID)); v != "" && len(v) <= maxVisitorKeyLen {
		return v
	}
	return c.GetString(userIDKey)
}
