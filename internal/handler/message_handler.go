package handler

import (
	"school-messaging/internal/service"
	"school-messaging/pkg/jwt"
	"school-messaging/pkg/response"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messages *service.MessageService
}

func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Send stores a new message in a conversation.
func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	type req struct {
		Content   string `json:"content" binding:"required"`
		ReplyToID *uint  `json:"replyToId"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	message, err := h.messages.SendMessage(jwt.GetUserID(c), conversationID, r.Content, r.ReplyToID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, message)
}

// List pages through a conversation's history, newest first.
func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	limit, offset := parsePaging(c)
	messages, err := h.messages.GetMessages(jwt.GetUserID(c), conversationID, limit, offset)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, messages)
}

// Edit replaces a message's content within the edit window.
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := parseUintParam(c, "messageId")
	if !ok {
		return
	}
	type req struct {
		Content string `json:"content" binding:"required"`
	}
	var r req
	if err := c.ShouldBindJSON(&r); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	message, err := h.messages.EditMessage(jwt.GetUserID(c), messageID, r.Content)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, message)
}

// Delete tombstones a message.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := parseUintParam(c, "messageId")
	if !ok {
		return
	}
	if err := h.messages.DeleteMessage(jwt.GetUserID(c), messageID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkRead records a read receipt for one message.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	messageID, ok := parseUintParam(c, "messageId")
	if !ok {
		return
	}
	if err := h.messages.MarkMessageRead(jwt.GetUserID(c), messageID); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}
