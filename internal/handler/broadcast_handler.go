package handler

import (
	"time"

	"school-messaging/internal/model"
	"school-messaging/internal/service"
	"school-messaging/pkg/jwt"
	"school-messaging/pkg/response"

	"github.com/gin-gonic/gin"
)

type BroadcastHandler struct {
	broadcasts *service.BroadcastService
}

func NewBroadcastHandler(broadcasts *service.BroadcastService) *BroadcastHandler {
	return &BroadcastHandler{broadcasts: broadcasts}
}

// Send fans a notice out to a role audience.
func (h *BroadcastHandler) Send(c *gin.Context) {
	type req struct {
		Audience  []string   `json:"audience" binding:"required"`
		Title     string     `json:"title" binding:"required"`
		Content   string     `json:"content" binding:"required"`
		Priority  string     `json:"priority"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	audience := make(model.RoleSet, 0, len(r.Audience))
	for _, tag := range r.Audience {
		audience = append(audience, model.Role(tag))
	}

	broadcast, err := h.broadcasts.SendBroadcast(
		jwt.GetUserID(c), audience, r.Title, r.Content,
		model.BroadcastPriority(r.Priority), r.ExpiresAt,
	)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, broadcast)
}

// SendDirect targets an explicit user list.
func (h *BroadcastHandler) SendDirect(c *gin.Context) {
	type req struct {
		RecipientIDs []uint     `json:"recipientIds" binding:"required"`
		Title        string     `json:"title" binding:"required"`
		Content      string     `json:"content" binding:"required"`
		Priority     string     `json:"priority"`
		ExpiresAt    *time.Time `json:"expiresAt"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	broadcast, err := h.broadcasts.SendDirectBroadcast(
		jwt.GetUserID(c), r.RecipientIDs, r.Title, r.Content,
		model.BroadcastPriority(r.Priority), r.ExpiresAt,
	)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, broadcast)
}

// List pages through the caller's visible notices.
func (h *BroadcastHandler) List(c *gin.Context) {
	limit, offset := parsePaging(c)
	broadcasts, err := h.broadcasts.ListBroadcasts(jwt.GetUserID(c), limit, offset)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, broadcasts)
}

// Get returns one notice decrypted for the caller.
func (h *BroadcastHandler) Get(c *gin.Context) {
	broadcastID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	broadcast, err := h.broadcasts.GetBroadcast(jwt.GetUserID(c), broadcastID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, broadcast)
}

// MarkRead flips the caller's read state for one notice.
func (h *BroadcastHandler) MarkRead(c *gin.Context) {
	broadcastID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if err := h.broadcasts.MarkBroadcastRead(jwt.GetUserID(c), broadcastID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}

// Delete hides a notice from the caller's inbox.
func (h *BroadcastHandler) Delete(c *gin.Context) {
	broadcastID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if err := h.broadcasts.DeleteBroadcastForUser(jwt.GetUserID(c), broadcastID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}
