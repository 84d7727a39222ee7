package handler

import (
	"school-messaging/internal/service"
	"school-messaging/pkg/jwt"
	"school-messaging/pkg/response"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	admin *service.AdminService
}

func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// ConversationMessages decrypts a conversation's history for an
// administrator. A reason is mandatory and lands in the audit trail.
func (h *AdminHandler) ConversationMessages(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	reason := c.Query("reason")
	limit, offset := parsePaging(c)

	messages, err := h.admin.GetConversationMessages(
		jwt.GetUserID(c), conversationID, limit, offset,
		service.AdminAccessContext{
			Reason:    reason,
			ClientIP:  c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		},
	)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, messages)
}

// AccessLog lists the audit trail of a conversation.
func (h *AdminHandler) AccessLog(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	limit, offset := parsePaging(c)
	entries, err := h.admin.GetAccessLog(jwt.GetUserID(c), conversationID, limit, offset)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, entries)
}
