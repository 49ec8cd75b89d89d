package middleware

import (
	"strings"

	"wiki-backend/auth"
	"wiki-backend/internal/errors"
	"wiki-backend/internal/user"

	"github.com/gin-gonic/gin"
)

const currentUserKey = "current_user"

type UserProvider interface {
	GetUserByUsername(username string) (*user.User, error)
}

type Auth struct {
	Users UserProvider
}

// CurrentUser returns the authenticated principal, or nil for guests
func CurrentUser(c *gin.Context) *user.User {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	principal, _ := value.(*user.User)
	return principal
}

// Required rejects requests without a valid, active principal
func (m *Auth) Required() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		principal, err := m.resolve(ctx)
		if err != nil {
			ctx.Error(err)
			ctx.Abort()
			return
		}

		ctx.Set(currentUserKey, principal)
		ctx.Next()
	}
}

// Optional resolves a principal when a valid token is present, and
// degrades to guest on any failure instead of rejecting the request.
// Inactive users also fall through to guest.
func (m *Auth) Optional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		principal, err := m.resolve(ctx)
		if err == nil {
			ctx.Set(currentUserKey, principal)
		}
		ctx.Next()
	}
}

func (m *Auth) resolve(ctx *gin.Context) (*user.User, error) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return nil, errors.Unauthorized("Authorization is not found!", nil)
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	parsedToken, err := auth.VerifyJWT(token)
	if err != nil {
		return nil, errors.Unauthorized("Invalid token!", err)
	}

	username, err := auth.SubjectFromToken(parsedToken)
	if err != nil {
		return nil, errors.Unauthorized("Invalid token!", err)
	}

	principal, err := m.Users.GetUserByUsername(username)
	if err != nil {
		return nil, errors.Unauthorized("Invalid user!", err)
	}

	if !principal.IsActive {
		return nil, errors.Unauthorized("User is not active", nil)
	}

	return principal, nil
}
