package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"wiki-backend/auth"
	"wiki-backend/internal/config"
	"wiki-backend/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubUserProvider struct {
	users map[string]*user.User
}

func (p *stubUserProvider) GetUserByUsername(username string) (*user.User, error) {
	u, ok := p.users[username]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func setupAuthRouter(t *testing.T, provider UserProvider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.AppConfig.JWTSecret = "test-secret"

	authMiddleware := &Auth{Users: provider}
	router := gin.New()
	router.Use(ErrorHandler())

	router.GET("/required", authMiddleware.Required(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": CurrentUser(c).Username})
	})
	router.GET("/optional", authMiddleware.Optional(), func(c *gin.Context) {
		principal := CurrentUser(c)
		if principal == nil {
			c.JSON(http.StatusOK, gin.H{"guest": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": principal.Username})
	})
	return router
}

func doAuthRequest(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRequiredWithValidToken(t *testing.T) {
	provider := &stubUserProvider{users: map[string]*user.User{
		"alice": {ID: 1, Username: "alice", IsActive: true},
	}}
	router := setupAuthRouter(t, provider)

	token, err := auth.GenerateJWT("alice")
	require.NoError(t, err)

	recorder := doAuthRequest(router, "/required", token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"username":"alice"`)
}

func TestRequiredWithoutToken(t *testing.T) {
	router := setupAuthRouter(t, &stubUserProvider{})

	recorder := doAuthRequest(router, "/required", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequiredWithGarbageToken(t *testing.T) {
	router := setupAuthRouter(t, &stubUserProvider{})

	recorder := doAuthRequest(router, "/required", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequiredRejectsInactiveUser(t *testing.T) {
	provider := &stubUserProvider{users: map[string]*user.User{
		"alice": {ID: 1, Username: "alice", IsActive: false},
	}}
	router := setupAuthRouter(t, provider)

	token, err := auth.GenerateJWT("alice")
	require.NoError(t, err)

	recorder := doAuthRequest(router, "/required", token)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequiredRejectsUnknownUser(t *testing.T) {
	router := setupAuthRouter(t, &stubUserProvider{})

	token, err := auth.GenerateJWT("ghost")
	require.NoError(t, err)

	recorder := doAuthRequest(router, "/required", token)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestOptionalWithValidToken(t *testing.T) {
	provider := &stubUserProvider{users: map[string]*user.User{
		"alice": {ID: 1, Username: "alice", IsActive: true},
	}}
	router := setupAuthRouter(t, provider)

	token, err := auth.GenerateJWT("alice")
	require.NoError(t, err)

	recorder := doAuthRequest(router, "/optional", token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"username":"alice"`)
}

// Guest fallback: a broken token on an optional route never fails the
// request, it just drops the principal
func TestOptionalDegradesToGuest(t *testing.T) {
	provider := &stubUserProvider{users: map[string]*user.User{
		"alice": {ID: 1, Username: "alice", IsActive: false},
	}}
	router := setupAuthRouter(t, provider)

	for name, token := range map[string]string{
		"no token":      "",
		"garbage token": "not-a-jwt",
	} {
		recorder := doAuthRequest(router, "/optional", token)
		assert.Equal(t, http.StatusOK, recorder.Code, name)
		assert.Contains(t, recorder.Body.String(), `"guest":true`, name)
	}

	// valid token, blocked user
	token, err := auth.GenerateJWT("alice")
	require.NoError(t, err)
	recorder := doAuthRequest(router, "/optional", token)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"guest":true`)
}
