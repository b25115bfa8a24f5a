package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"codeberg.org/storefront/server/internal/auth"
	"codeberg.org/storefront/server/internal/errors"
	"codeberg.org/storefront/server/internal/logger"
	"codeberg.org/storefront/server/storefront/sessions"
)

const sessionContextKey = "session_manager"

// SessionDeps holds the shared collaborators every request's session
// manager is built from.
type SessionDeps struct {
	Codec *sessions.Codec
	Store sessions.Store
	Cache sessions.Cache

	// invoked when a session is destroyed (logout, post-checkout)
	ClearCart func()

	SecureCookie bool
}

// Session resolves the visitor's session before the handler chain runs and
// persists it afterwards. Handlers reach the manager via SessionFrom.
func Session(deps SessionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		manager := sessions.NewManager(sessions.Deps{
			Codec:        deps.Codec,
			Store:        deps.Store,
			Cache:        deps.Cache,
			User:         contextUser{c},
			Cookies:      requestCookies{c},
			ClearCart:    deps.ClearCart,
			SecureCookie: deps.SecureCookie,
		})

		if err := manager.Resolve(ctx); err != nil {
			errors.InternalError(c, "failed to resolve session", err)
			c.Abort()
			return
		}

		if err := manager.Load(ctx); err != nil {
			errors.InternalError(c, "failed to load session", err)
			c.Abort()
			return
		}

		c.Set(sessionContextKey, manager)
		c.Next()

		// the response is already written at this point, so a failed flush
		// can only be logged and recorded
		if err := manager.Persist(ctx); err != nil {
			logger.ErrorErr(err, "failed to persist session",
				"path", c.Request.URL.Path,
				"identity", manager.Identity(),
			)
			c.Error(err) //nolint:errcheck,gosec // gin collects request errors
		}
	}
}

// SessionFrom returns the request's session manager. Panics when the
// Session middleware is not installed, which is a wiring bug.
func SessionFrom(c *gin.Context) *sessions.Manager {
	return c.MustGet(sessionContextKey).(*sessions.Manager)
}

// adapts the gin request/response pair to the manager's cookie transport
type requestCookies struct {
	c *gin.Context
}

func (r requestCookies) Cookie(name string) (string, bool) {
	value, err := r.c.Cookie(name)
	if err != nil {
		return "", false
	}

	return value, true
}

func (r requestCookies) SetCookie(name, value string, expires time.Time, secure bool) {
	http.SetCookie(r.c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// reports the authenticated user from the request context, populated by
// auth.OptionalAuthMiddleware
type contextUser struct {
	c *gin.Context
}

func (u contextUser) IsAuthenticated() bool {
	_, ok := auth.GetUserID(u.c)
	return ok
}

func (u contextUser) UserID() string {
	userID, _ := auth.GetUserID(u.c)
	return userID
}
