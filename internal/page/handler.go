package page

import (
	"net/http"
	"strconv"

	"wiki-backend/internal/errors"
	"wiki-backend/internal/middleware"
	"wiki-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type CreatePageRequest struct {
	Title    string  `json:"title" binding:"required,min=1,max=255"`
	Content  string  `json:"content"`
	ParentID *uint64 `json:"parent_id"`
	IsPublic bool    `json:"is_public"`
}

type UpdatePageRequest struct {
	Title    string  `json:"title" binding:"required,min=1,max=255"`
	Content  string  `json:"content"`
	IsPublic *bool   `json:"is_public"`
	Comment  *string `json:"version_comment" binding:"omitempty,max=500"`
}

type AddCollaboratorRequest struct {
	UserID      uint64 `json:"user_id" binding:"required"`
	AccessLevel string `json:"access_level" binding:"required,oneof=read write"`
}

// ShowTree returns the page forest visible to the caller; guests see
// public subtrees only
func (h *Handler) ShowTree(c *gin.Context) {
	principal := middleware.CurrentUser(c)

	forest, err := h.service.GetPageTree(c.Request.Context(), principal)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, forest)
}

func (h *Handler) ShowPage(c *gin.Context) {
	principal := middleware.CurrentUser(c)

	dto, err := h.service.GetPage(c.Request.Context(), c.Param("id"), principal)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto)
}

func (h *Handler) Create(c *gin.Context) {
	var form CreatePageRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	principal := middleware.CurrentUser(c)

	dto, err := h.service.CreatePage(c.Request.Context(), principal, CreatePageInput{
		Title:    form.Title,
		Content:  form.Content,
		ParentID: form.ParentID,
		IsPublic: form.IsPublic,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto)
}

func (h *Handler) Update(c *gin.Context) {
	var form UpdatePageRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	principal := middleware.CurrentUser(c)

	dto, err := h.service.UpdatePage(c.Request.Context(), c.Param("id"), principal, UpdatePageInput{
		Title:    form.Title,
		Content:  form.Content,
		IsPublic: form.IsPublic,
		Comment:  form.Comment,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto)
}

func (h *Handler) Delete(c *gin.Context) {
	principal := middleware.CurrentUser(c)

	if err := h.service.DeletePage(c.Request.Context(), c.Param("id"), principal); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Page deleted successfully"})
}

func (h *Handler) ShowHistory(c *gin.Context) {
	principal := middleware.CurrentUser(c)

	versions, err := h.service.GetHistory(c.Request.Context(), c.Param("id"), principal)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, versions)
}

func (h *Handler) Restore(c *gin.Context) {
	versionID, err := strconv.ParseUint(c.Param("versionId"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid version id", err))
		return
	}

	principal := middleware.CurrentUser(c)

	dto, err := h.service.RestoreVersion(c.Request.Context(), c.Param("id"), versionID, principal)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Version restored", "page": dto})
}

func (h *Handler) ListCollaborators(c *gin.Context) {
	principal := middleware.CurrentUser(c)

	result, err := h.service.ListCollaborators(c.Request.Context(), c.Param("id"), principal)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) AddCollaborator(c *gin.Context) {
	var form AddCollaboratorRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	principal := middleware.CurrentUser(c)

	result, err := h.service.UpsertCollaborator(
		c.Request.Context(),
		c.Param("id"),
		principal,
		form.UserID,
		form.AccessLevel,
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) Like(c *gin.Context) {
	principal := middleware.CurrentUser(c)

	if err := h.service.LikePage(c.Request.Context(), c.Param("id"), principal); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Page liked", "liked": true})
}

func (h *Handler) Unlike(c *gin.Context) {
	principal := middleware.CurrentUser(c)

	if err := h.service.UnlikePage(c.Request.Context(), c.Param("id"), principal); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Page unliked", "liked": false})
}

func (h *Handler) ShowLikes(c *gin.Context) {
	principal := middleware.CurrentUser(c)

	info, err := h.service.GetLikeInfo(c.Request.Context(), c.Param("id"), principal)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.Error(errors.BadRequest("Query parameter 'q' is required", nil))
		return
	}

	principal := middleware.CurrentUser(c)

	results, err := h.service.Search(c.Request.Context(), query, principal)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *Handler) ShowPopular(c *gin.Context) {
	principal := middleware.CurrentUser(c)
	limit := utils.GetLimitParam(c, 5, 50)

	pages, err := h.service.GetPopularPages(c.Request.Context(), limit, principal)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, pages)
}
