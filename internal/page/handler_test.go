package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wiki-backend/internal/errors"
	"wiki-backend/internal/middleware"
	"wiki-backend/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetPageTree(ctx context.Context, principal *user.User) ([]*TreeNode, error) {
	args := m.Called(ctx, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*TreeNode), args.Error(1)
}

func (m *MockService) GetPage(ctx context.Context, idOrSlug string, principal *user.User) (*PageDTO, error) {
	args := m.Called(ctx, idOrSlug, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PageDTO), args.Error(1)
}

func (m *MockService) CreatePage(ctx context.Context, principal *user.User, input CreatePageInput) (*PageDTO, error) {
	args := m.Called(ctx, principal, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PageDTO), args.Error(1)
}

func (m *MockService) UpdatePage(ctx context.Context, idOrSlug string, principal *user.User, input UpdatePageInput) (*PageDTO, error) {
	args := m.Called(ctx, idOrSlug, principal, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PageDTO), args.Error(1)
}

func (m *MockService) DeletePage(ctx context.Context, idOrSlug string, principal *user.User) error {
	args := m.Called(ctx, idOrSlug, principal)
	return args.Error(0)
}

func (m *MockService) GetHistory(ctx context.Context, idOrSlug string, principal *user.User) ([]VersionDTO, error) {
	args := m.Called(ctx, idOrSlug, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]VersionDTO), args.Error(1)
}

func (m *MockService) RestoreVersion(ctx context.Context, idOrSlug string, versionID uint64, principal *user.User) (*PageDTO, error) {
	args := m.Called(ctx, idOrSlug, versionID, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PageDTO), args.Error(1)
}

func (m *MockService) ListCollaborators(ctx context.Context, idOrSlug string, principal *user.User) ([]CollaboratorDTO, error) {
	args := m.Called(ctx, idOrSlug, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CollaboratorDTO), args.Error(1)
}

func (m *MockService) UpsertCollaborator(ctx context.Context, idOrSlug string, principal *user.User, targetUserID uint64, level string) (*CollaboratorDTO, error) {
	args := m.Called(ctx, idOrSlug, principal, targetUserID, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CollaboratorDTO), args.Error(1)
}

func (m *MockService) LikePage(ctx context.Context, idOrSlug string, principal *user.User) error {
	args := m.Called(ctx, idOrSlug, principal)
	return args.Error(0)
}

func (m *MockService) UnlikePage(ctx context.Context, idOrSlug string, principal *user.User) error {
	args := m.Called(ctx, idOrSlug, principal)
	return args.Error(0)
}

func (m *MockService) GetLikeInfo(ctx context.Context, idOrSlug string, principal *user.User) (*LikeInfo, error) {
	args := m.Called(ctx, idOrSlug, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*LikeInfo), args.Error(1)
}

func (m *MockService) Search(ctx context.Context, query string, principal *user.User) ([]SearchResult, error) {
	args := m.Called(ctx, query, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SearchResult), args.Error(1)
}

func (m *MockService) GetPopularPages(ctx context.Context, limit int, principal *user.User) ([]PopularPage, error) {
	args := m.Called(ctx, limit, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PopularPage), args.Error(1)
}

// setupRouter wires the handler the way main does, with the principal
// injected directly instead of going through token auth
func setupRouter(service Service, principal *user.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(service)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		if principal != nil {
			c.Set("current_user", principal)
		}
		c.Next()
	})

	api := router.Group("/api")
	api.GET("/pages", handler.ShowTree)
	api.GET("/pages/popular", handler.ShowPopular)
	api.GET("/pages/:id", handler.ShowPage)
	api.POST("/pages", handler.Create)
	api.PUT("/pages/:id", handler.Update)
	api.DELETE("/pages/:id", handler.Delete)
	api.GET("/pages/:id/history", handler.ShowHistory)
	api.POST("/pages/:id/restore/:versionId", handler.Restore)
	api.GET("/pages/:id/collaborators", handler.ListCollaborators)
	api.POST("/pages/:id/collaborators", handler.AddCollaborator)
	api.POST("/pages/:id/like", handler.Like)
	api.DELETE("/pages/:id/like", handler.Unlike)
	api.GET("/pages/:id/likes", handler.ShowLikes)
	api.GET("/search", handler.Search)
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestShowTreeAsGuest(t *testing.T) {
	service := new(MockService)
	forest := []*TreeNode{{ID: 1, Title: "Home", Slug: "home"}}
	service.On("GetPageTree", mock.Anything, (*user.User)(nil)).Return(forest, nil)

	router := setupRouter(service, nil)
	recorder := doRequest(router, http.MethodGet, "/api/pages", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"slug":"home"`)
	service.AssertExpectations(t)
}

func TestShowPageForbidden(t *testing.T) {
	service := new(MockService)
	service.On("GetPage", mock.Anything, "7", (*user.User)(nil)).
		Return(nil, errors.Forbidden("Not authorized", nil))

	router := setupRouter(service, nil)
	recorder := doRequest(router, http.MethodGet, "/api/pages/7", "")

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Not authorized")
	service.AssertExpectations(t)
}

func TestCreatePage(t *testing.T) {
	service := new(MockService)
	service.On("CreatePage", mock.Anything, author, CreatePageInput{
		Title:    "New page",
		Content:  "hello",
		IsPublic: true,
	}).Return(&PageDTO{ID: 10, Title: "New page", Slug: "new-page", IsPublic: true}, nil)

	router := setupRouter(service, author)
	recorder := doRequest(router, http.MethodPost, "/api/pages",
		`{"title": "New page", "content": "hello", "is_public": true}`)

	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"slug":"new-page"`)
	service.AssertExpectations(t)
}

func TestCreatePageValidation(t *testing.T) {
	service := new(MockService)
	router := setupRouter(service, author)

	recorder := doRequest(router, http.MethodPost, "/api/pages", `{"content": "no title"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	service.AssertNotCalled(t, "CreatePage")
}

func TestUpdatePagePassesTriStateFlag(t *testing.T) {
	service := new(MockService)
	// no is_public in the body means a nil pointer reaches the service
	service.On("UpdatePage", mock.Anything, "5", author, UpdatePageInput{
		Title:   "Renamed",
		Content: "body",
	}).Return(&PageDTO{ID: 5, Title: "Renamed"}, nil)

	router := setupRouter(service, author)
	recorder := doRequest(router, http.MethodPut, "/api/pages/5",
		`{"title": "Renamed", "content": "body"}`)

	assert.Equal(t, http.StatusOK, recorder.Code)
	service.AssertExpectations(t)
}

func TestDeletePage(t *testing.T) {
	service := new(MockService)
	service.On("DeletePage", mock.Anything, "3", author).Return(nil)

	router := setupRouter(service, author)
	recorder := doRequest(router, http.MethodDelete, "/api/pages/3", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Page deleted successfully")
	service.AssertExpectations(t)
}

func TestRestoreInvalidVersionID(t *testing.T) {
	service := new(MockService)
	router := setupRouter(service, author)

	recorder := doRequest(router, http.MethodPost, "/api/pages/3/restore/abc", "")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	service.AssertNotCalled(t, "RestoreVersion")
}

func TestRestoreVersionRoute(t *testing.T) {
	service := new(MockService)
	service.On("RestoreVersion", mock.Anything, "3", uint64(12), author).
		Return(&PageDTO{ID: 3, Title: "Restored"}, nil)

	router := setupRouter(service, author)
	recorder := doRequest(router, http.MethodPost, "/api/pages/3/restore/12", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Version restored")
	service.AssertExpectations(t)
}

func TestAddCollaboratorValidatesLevel(t *testing.T) {
	service := new(MockService)
	router := setupRouter(service, author)

	recorder := doRequest(router, http.MethodPost, "/api/pages/3/collaborators",
		`{"user_id": 3, "access_level": "owner"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	service.AssertNotCalled(t, "UpsertCollaborator")
}

func TestAddCollaborator(t *testing.T) {
	service := new(MockService)
	service.On("UpsertCollaborator", mock.Anything, "3", author, uint64(3), AccessWrite).
		Return(&CollaboratorDTO{ID: 1, AccessLevel: AccessWrite}, nil)

	router := setupRouter(service, author)
	recorder := doRequest(router, http.MethodPost, "/api/pages/3/collaborators",
		`{"user_id": 3, "access_level": "write"}`)

	assert.Equal(t, http.StatusCreated, recorder.Code)
	service.AssertExpectations(t)
}

func TestLikeConflict(t *testing.T) {
	service := new(MockService)
	service.On("LikePage", mock.Anything, "3", stranger).
		Return(errors.Conflict("Page already liked", nil))

	router := setupRouter(service, stranger)
	recorder := doRequest(router, http.MethodPost, "/api/pages/3/like", "")

	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Page already liked")
	service.AssertExpectations(t)
}

func TestUnlike(t *testing.T) {
	service := new(MockService)
	service.On("UnlikePage", mock.Anything, "3", stranger).Return(nil)

	router := setupRouter(service, stranger)
	recorder := doRequest(router, http.MethodDelete, "/api/pages/3/like", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"liked":false`)
	service.AssertExpectations(t)
}

func TestSearchRequiresQuery(t *testing.T) {
	service := new(MockService)
	router := setupRouter(service, nil)

	recorder := doRequest(router, http.MethodGet, "/api/search", "")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	service.AssertNotCalled(t, "Search")
}

func TestSearchRoute(t *testing.T) {
	service := new(MockService)
	service.On("Search", mock.Anything, "gopher", (*user.User)(nil)).
		Return([]SearchResult{}, nil)

	router := setupRouter(service, nil)
	recorder := doRequest(router, http.MethodGet, "/api/search?q=gopher", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	service.AssertExpectations(t)
}

func TestShowPopularLimitParam(t *testing.T) {
	service := new(MockService)
	service.On("GetPopularPages", mock.Anything, 10, (*user.User)(nil)).
		Return([]PopularPage{}, nil)

	router := setupRouter(service, nil)
	recorder := doRequest(router, http.MethodGet, "/api/pages/popular?limit=10", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	service.AssertExpectations(t)
}

func TestShowPopularLimitCapped(t *testing.T) {
	service := new(MockService)
	// oversized values are clamped, not passed through
	service.On("GetPopularPages", mock.Anything, 50, (*user.User)(nil)).
		Return([]PopularPage{}, nil)

	router := setupRouter(service, nil)
	recorder := doRequest(router, http.MethodGet, "/api/pages/popular?limit=500", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	service.AssertExpectations(t)
}
