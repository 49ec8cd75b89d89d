package user

import (
	"net/http"
	"strconv"

	"wiki-backend/auth"
	"wiki-backend/internal/errors"

	"github.com/gin-gonic/gin"
)

// currentUser reads the principal set by the auth middleware
func currentUser(c *gin.Context) *User {
	value, ok := c.Get("current_user")
	if !ok {
		return nil
	}
	principal, _ := value.(*User)
	return principal
}

// Handler handles HTTP requests for users
type Handler struct {
	service Service
}

// NewHandler creates a new user handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// FormRegister represents registration form data
type FormRegister struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// FormLogin represents login form data
type FormLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register handles user registration
func (h *Handler) Register(c *gin.Context) {
	var form FormRegister
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	newUser := &User{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	}

	if err := h.service.Register(newUser); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": newUser.ToSafeUser()})
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var form FormLogin
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	loggedIn, err := h.service.Login(form.Username, form.Password)
	if err != nil {
		c.Error(err)
		return
	}

	accessToken, err := auth.GenerateJWT(loggedIn.Username)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "bearer",
		"user":         loggedIn.ToSafeUser(),
	})
}

// Me returns the authenticated user's profile
func (h *Handler) Me(c *gin.Context) {
	principal := currentUser(c)
	c.JSON(http.StatusOK, principal.ToSafeUser())
}

// List returns active users, used by collaborator pickers
func (h *Handler) List(c *gin.Context) {
	users, err := h.service.ListActiveUsers()
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// AdminList returns every user, admins only
func (h *Handler) AdminList(c *gin.Context) {
	principal := currentUser(c)
	if !principal.IsAdmin() {
		c.Error(errors.Forbidden("Not authorized", nil))
		return
	}

	users, err := h.service.ListAllUsers()
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, users)
}

// Block deactivates a user, admins only
func (h *Handler) Block(c *gin.Context) {
	h.setActive(c, false, "User blocked")
}

// Unblock reactivates a user, admins only
func (h *Handler) Unblock(c *gin.Context) {
	h.setActive(c, true, "User unblocked")
}

func (h *Handler) setActive(c *gin.Context, active bool, message string) {
	principal := currentUser(c)
	if !principal.IsAdmin() {
		c.Error(errors.Forbidden("Not authorized", nil))
		return
	}

	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("Invalid user id", err))
		return
	}

	if err := h.service.SetUserActive(userID, active); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}
