package handler

import (
	"school-messaging/internal/service"
	"school-messaging/pkg/jwt"
	"school-messaging/pkg/response"

	"github.com/gin-gonic/gin"
)

type ConversationHandler struct {
	conversations *service.ConversationService
}

func NewConversationHandler(conversations *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// CreateDirect returns the direct conversation with another user, creating
// it on first contact.
func (h *ConversationHandler) CreateDirect(c *gin.Context) {
	type req struct {
		RecipientID uint `json:"recipientId" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	conv, err := h.conversations.GetOrCreateDirect(jwt.GetUserID(c), r.RecipientID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, conv)
}

// CreateGroup returns the conversation backing a student group.
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	type req struct {
		GroupID uint `json:"groupId" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	conv, err := h.conversations.GetOrCreateGroupConversation(jwt.GetUserID(c), r.GroupID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, conv)
}

// CreateMultiParty creates an ad-hoc multi-party conversation.
func (h *ConversationHandler) CreateMultiParty(c *gin.Context) {
	type req struct {
		Title        string `json:"title"`
		RecipientIDs []uint `json:"recipientIds" binding:"required"`
		CourseID     *uint  `json:"courseId"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	conv, err := h.conversations.CreateMultiParty(jwt.GetUserID(c), r.Title, r.RecipientIDs, r.CourseID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, conv)
}

// List returns the caller's conversation list with unread counts.
func (h *ConversationHandler) List(c *gin.Context) {
	summaries, err := h.conversations.ListConversations(jwt.GetUserID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, summaries)
}

// Leave marks the caller as left.
func (h *ConversationHandler) Leave(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if err := h.conversations.Leave(jwt.GetUserID(c), conversationID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}

// SetTyping records the caller's typing state.
func (h *ConversationHandler) SetTyping(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	type req struct {
		Typing bool `json:"typing"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.conversations.SetTyping(jwt.GetUserID(c), conversationID, r.Typing); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}

// TypingUsers lists who is typing right now.
func (h *ConversationHandler) TypingUsers(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	ids, err := h.conversations.TypingUsers(jwt.GetUserID(c), conversationID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"user_ids": ids})
}

// SetMuted toggles the caller's mute preference.
func (h *ConversationHandler) SetMuted(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	type req struct {
		Muted bool `json:"muted"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.conversations.SetMuted(jwt.GetUserID(c), conversationID, r.Muted); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}

// SetPinned toggles the caller's pin preference.
func (h *ConversationHandler) SetPinned(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	type req struct {
		Pinned bool `json:"pinned"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.conversations.SetPinned(jwt.GetUserID(c), conversationID, r.Pinned); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkRead advances the caller's read cursor to the newest message.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if err := h.conversations.MarkConversationRead(jwt.GetUserID(c), conversationID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}

// UnreadCount returns the caller's unread count for one conversation.
func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	count, err := h.conversations.UnreadCount(jwt.GetUserID(c), conversationID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"unread": count})
}
