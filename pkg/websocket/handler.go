package websocket

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"school-messaging/config"
	"school-messaging/pkg/jwt"
	"school-messaging/pkg/logger"
	"school-messaging/pkg/redis"
	"school-messaging/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	pingInterval = 30 * time.Second
	readTimeout  = 90 * time.Second
)

// WsHandler upgrades the connection after validating the token from the
// query string (browsers cannot set Authorization on websocket upgrades)
// and keeps presence fresh while the socket lives.
func WsHandler(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Sec-WebSocket-Protocol"), "Bearer ")
	}
	if token == "" {
		response.Unauthorized(c, "missing token")
		return
	}

	jwtCfg := c.MustGet("jwt_config").(config.JWTConfig)
	jwtSvc := jwt.NewJWTService(jwtCfg)
	claims, err := jwtSvc.ValidateToken(token)
	if err != nil {
		response.Unauthorized(c, "token invalid or expired")
		return
	}
	userID64, _ := strconv.ParseUint(claims.Subject, 10, 32)
	if userID64 == 0 {
		response.Unauthorized(c, "token subject invalid")
		return
	}
	userID := uint(userID64)

	respHeader := http.Header{}
	if protocol := c.GetHeader("Sec-WebSocket-Protocol"); protocol != "" {
		respHeader.Set("Sec-WebSocket-Protocol", protocol)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
	GetManager().AddClient(userID, client)
	if err := redis.SetUserOnline(userID); err != nil {
		logger.Warn("set presence failed", zap.Uint("user_id", userID), zap.Error(err))
	}

	defer func() {
		GetManager().RemoveClient(userID, client)
		if err := redis.SetUserOffline(userID); err != nil {
			logger.Warn("clear presence failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}()

	// Writer goroutine: queued frames plus periodic pings.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case msg, ok := <-client.Send:
				if !ok {
					return
				}
				_ = conn.WriteMessage(websocket.TextMessage, msg)
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop: only pongs and heartbeats are expected upstream; all
	// messaging operations go through the HTTP API.
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = redis.RefreshUserPresence(userID)
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_ = redis.RefreshUserPresence(userID)
	}
}
