package handler

import (
	"strconv"
	"time"

	"school-messaging/internal/model"
	"school-messaging/internal/service"
	"school-messaging/pkg/jwt"
	"school-messaging/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	users *service.UserService
	authz *service.AuthorizationService
}

func NewUserHandler(users *service.UserService, authz *service.AuthorizationService) *UserHandler {
	return &UserHandler{users: users, authz: authz}
}

// Register creates an account.
func (h *UserHandler) Register(c *gin.Context) {
	type req struct {
		Username  string `json:"username" binding:"required"`
		Email     string `json:"email"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Role      string `json:"role" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	profile, err := h.users.Register(r.Username, r.Email, r.Password, r.FirstName, r.LastName, model.Role(r.Role))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, profile)
}

// Login verifies credentials and returns an access token.
func (h *UserHandler) Login(c *gin.Context) {
	type req struct {
		UsernameOrEmail string `json:"usernameOrEmail" binding:"required"`
		Password        string `json:"password" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.users.Login(r.UsernameOrEmail, r.Password)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, result)
}

// GetProfile returns the caller's own profile.
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.users.GetProfile(jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, profile)
}

// AllowedRecipients lists who the caller may start a conversation with.
func (h *UserHandler) AllowedRecipients(c *gin.Context) {
	ids, err := h.authz.AllowedRecipients(jwt.GetUserID(c), time.Now())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"user_ids": ids})
}

// AllowedGroups lists the groups the caller may message.
func (h *UserHandler) AllowedGroups(c *gin.Context) {
	ids, err := h.authz.AllowedGroups(jwt.GetUserID(c), time.Now())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"group_ids": ids})
}

// parseUintParam reads a positive integer path parameter.
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || value == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(value), true
}

// parsePaging reads limit/offset query parameters with safe defaults.
func parsePaging(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
