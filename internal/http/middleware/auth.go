package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/fallfest-referrals/internal/auth"
	"github.com/tbourn/fallfest-referrals/internal/domain"
)

const (
	userIDKey    = "userID"
	userEmailKey = "userEmail"
	userNameKey  = "userName"

	// Trusted identity headers, honoured only when enabled in config.
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// Authenticate resolves the caller identity and stores it in the Gin context.
//
// A bearer token (Authorization header, or the access_token query parameter
// for EventSource clients) is verified with v. When trustHeaders is set and no
// token is sent, the X-User-* headers are accepted as-is. Requests without
// credentials pass through anonymously; a token that fails verification is
// rejected with 401.
func Authenticate(v *auth.Verifier, trustHeaders bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := auth.BearerToken(c.GetHeader("Authorization"))
		if errors.Is(err, auth.ErrNoToken) {
			raw = strings.TrimSpace(c.Query("access_token"))
		}

		switch {
		case raw != "":
			id, err := v.Verify(raw)
			if err != nil {
				LoggerFrom(c).Debug().Err(err).Msg("token rejected")
				abortUnauthorized(c, "invalid or expired token")
				return
			}
			setIdentity(c, id)
		case trustHeaders:
			if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
				setIdentity(c, domain.Identity{
					UserID: uid,
					Email:  strings.TrimSpace(c.GetHeader(HeaderUserEmail)),
					Name:   strings.TrimSpace(c.GetHeader(HeaderUserName)),
				})
			}
		}
		c.Next()
	}
}

// RequireIdentity rejects anonymous requests with 401.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFrom(c); !ok {
			abortUnauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	uid := c.GetString(userIDKey)
	if uid == "" {
		return domain.Identity{}, false
	}
	return domain.Identity{
		UserID: uid,
		Email:  c.GetString(userEmailKey),
		Name:   c.GetString(userNameKey),
	}, true
}

func setIdentity(c *gin.Context, id domain.Identity) {
	c.Set(userIDKey, id.UserID)
	c.Set(userEmailKey, id.Email)
	c.Set(userNameKey, id.Name)
	enrichLogger(c, func(lc zerolog.Context) zerolog.Context {
		return lc.Str("user_id", id.UserID)
	})
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="fallfest"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       "unauthorized",
		"message":    msg,
	})
}
