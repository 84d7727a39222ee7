// Package push is the fire-and-forget notification boundary. Services call
// the Dispatcher after persistence has succeeded; delivery failures are
// logged and never propagate back into the send pipeline.
package push

import (
	"encoding/json"
	"time"

	"school-messaging/pkg/logger"
	"school-messaging/pkg/redis"
	"school-messaging/pkg/websocket"

	"go.uber.org/zap"
)

// Dispatcher delivers out-of-band notifications for persisted messages.
type Dispatcher interface {
	SendNewMessageNotification(recipientID uint, senderName, preview string, conversationID uint)
	SendBroadcastNotification(recipientIDs []uint, title string, broadcastID uint)
}

// WebSocketDispatcher pushes to live websocket connections, consulting the
// presence set first. Users without a connection simply miss the push; the
// message itself is already stored.
type WebSocketDispatcher struct{}

// NewWebSocketDispatcher returns the in-process dispatcher.
func NewWebSocketDispatcher() *WebSocketDispatcher {
	return &WebSocketDispatcher{}
}

// SendNewMessageNotification pushes a new-message event to one recipient.
func (d *WebSocketDispatcher) SendNewMessageNotification(recipientID uint, senderName, preview string, conversationID uint) {
	online, err := redis.IsUserOnline(recipientID)
	if err != nil {
		logger.Warn("presence lookup failed",
			zap.Uint("recipient_id", recipientID),
			zap.Error(err),
		)
	} else if !online {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"type":            "new_message",
		"conversation_id": conversationID,
		"sender_name":     senderName,
		"preview":         preview,
		"timestamp":       time.Now().Unix(),
	})
	if err != nil {
		logger.Error("marshal notification failed", zap.Error(err))
		return
	}

	if !websocket.GetManager().SendToUser(recipientID, payload) {
		logger.Debug("notification dropped, no live connection",
			zap.Uint("recipient_id", recipientID),
			zap.Uint("conversation_id", conversationID),
		)
	}
}

// SendBroadcastNotification pushes a broadcast event to every recipient
// with a live connection.
func (d *WebSocketDispatcher) SendBroadcastNotification(recipientIDs []uint, title string, broadcastID uint) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":         "new_broadcast",
		"broadcast_id": broadcastID,
		"title":        title,
		"timestamp":    time.Now().Unix(),
	})
	if err != nil {
		logger.Error("marshal notification failed", zap.Error(err))
		return
	}

	delivered := 0
	for _, recipientID := range recipientIDs {
		if websocket.GetManager().SendToUser(recipientID, payload) {
			delivered++
		}
	}
	logger.Info("broadcast notification dispatched",
		zap.Uint("broadcast_id", broadcastID),
		zap.Int("recipients", len(recipientIDs)),
		zap.Int("delivered_live", delivered),
	)
}

// NopDispatcher discards notifications; used in tests.
type NopDispatcher struct{}

func (NopDispatcher) SendNewMessageNotification(uint, string, string, uint) {}
func (NopDispatcher) SendBroadcastNotification([]uint, string, uint)        {}
