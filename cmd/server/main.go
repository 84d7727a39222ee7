package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"school-messaging/config"
	"school-messaging/internal/handler"
	"school-messaging/internal/model"
	"school-messaging/internal/repository"
	"school-messaging/internal/service"
	dbPkg "school-messaging/pkg/db"
	"school-messaging/pkg/jwt"
	"school-messaging/pkg/logger"
	"school-messaging/pkg/push"
	redisPkg "school-messaging/pkg/redis"
	"school-messaging/pkg/response"
	"school-messaging/pkg/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger(cfg.Log)
	defer log.Sync()

	log.Info("school messaging service starting",
		zap.String("port", cfg.Server.Port),
		zap.String("database_host", cfg.Database.Host),
		zap.Int("database_port", cfg.Database.Port),
		zap.String("database_name", cfg.Database.Database),
		zap.Duration("jwt_expire_time", cfg.JWT.ExpireTime),
		zap.Duration("edit_window", cfg.Messaging.EditWindow),
		zap.String("log_level", cfg.Log.Level),
	)

	if _, err := dbPkg.InitDB(cfg.Database); err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("database close failed", zap.Error(err))
		}
	}()

	if err := dbPkg.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.ConversationParticipant{},
		&model.ChatMessage{},
		&model.MessageReadReceipt{},
		&model.MessageDeliveryReceipt{},
		&model.BroadcastMessage{},
		&model.BroadcastMessageRecipient{},
		&model.AdminMessageAccessLog{},
		&model.StudentGroup{},
		&model.LessonAssignment{},
		&model.GroupLessonAssignment{},
		&model.GroupMembership{},
		&model.CounselorAssignment{},
		&model.ParentLink{},
	); err != nil {
		log.Fatal("auto migration failed", zap.Error(err))
	}

	if err := redisPkg.InitRedis(cfg.Redis); err != nil {
		// Unread counters and presence degrade to DB fallbacks.
		log.Warn("redis unavailable, caches disabled", zap.Error(err))
	} else {
		defer redisPkg.Close()
	}

	db := dbPkg.GetDB()
	jwtSvc := jwt.NewJWTService(cfg.JWT)

	userRepo := repository.NewUserRepository(db)
	relRepo := repository.NewRelationshipRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	broadcastRepo := repository.NewBroadcastRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	keyStore := service.NewMemoryKeyStore()
	encSvc := service.NewEncryptionService(cfg.Encryption.MasterSecret, keyStore)
	moderationSvc := service.NewModerationService()
	authzSvc := service.NewAuthorizationService(relRepo, userRepo)
	dispatcher := push.NewWebSocketDispatcher()

	userSvc := service.NewUserService(userRepo, jwtSvc)
	convSvc := service.NewConversationService(convRepo, msgRepo, userRepo, relRepo, authzSvc, encSvc, cfg.Messaging)
	msgSvc := service.NewMessageService(msgRepo, convRepo, userRepo, authzSvc, moderationSvc, encSvc, dispatcher, cfg.Messaging)
	broadcastSvc := service.NewBroadcastService(broadcastRepo, userRepo, authzSvc, moderationSvc, encSvc, dispatcher)
	adminSvc := service.NewAdminService(msgRepo, convRepo, userRepo, auditRepo, encSvc)

	userHandler := handler.NewUserHandler(userSvc, authzSvc)
	convHandler := handler.NewConversationHandler(convSvc)
	msgHandler := handler.NewMessageHandler(msgSvc)
	broadcastHandler := handler.NewBroadcastHandler(broadcastSvc)
	adminHandler := handler.NewAdminHandler(adminSvc)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("jwt_config", cfg.JWT)
		c.Next()
	})
	router.Use(logger.LoggerMiddleware())
	router.Use(logger.ErrorLoggerMiddleware())

	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		if err := dbPkg.HealthCheck(); err != nil {
			status = "db-down"
		}
		response.Success(c, gin.H{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	v1 := router.Group("/api/v1")
	{
		users := v1.Group("/users")
		{
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			authUsers := users.Group("")
			authUsers.Use(jwtSvc.AuthMiddleware())
			{
				authUsers.GET("/profile", userHandler.GetProfile)
				authUsers.GET("/contacts", userHandler.AllowedRecipients)
				authUsers.GET("/groups", userHandler.AllowedGroups)
			}
		}

		conversations := v1.Group("/conversations")
		conversations.Use(jwtSvc.AuthMiddleware())
		{
			conversations.POST("/direct", convHandler.CreateDirect)
			conversations.POST("/group", convHandler.CreateGroup)
			conversations.POST("/multi", convHandler.CreateMultiParty)
			conversations.GET("", convHandler.List)
			conversations.POST("/:id/leave", convHandler.Leave)
			conversations.PUT("/:id/typing", convHandler.SetTyping)
			conversations.GET("/:id/typing", convHandler.TypingUsers)
			conversations.PUT("/:id/mute", convHandler.SetMuted)
			conversations.PUT("/:id/pin", convHandler.SetPinned)
			conversations.PUT("/:id/read", convHandler.MarkRead)
			conversations.GET("/:id/unread", convHandler.UnreadCount)

			conversations.POST("/:id/messages", msgHandler.Send)
			conversations.GET("/:id/messages", msgHandler.List)
		}

		messages := v1.Group("/messages")
		messages.Use(jwtSvc.AuthMiddleware())
		{
			messages.PUT("/:messageId", msgHandler.Edit)
			messages.DELETE("/:messageId", msgHandler.Delete)
			messages.PUT("/:messageId/read", msgHandler.MarkRead)
		}

		broadcasts := v1.Group("/broadcasts")
		broadcasts.Use(jwtSvc.AuthMiddleware())
		{
			broadcasts.POST("", broadcastHandler.Send)
			broadcasts.POST("/direct", broadcastHandler.SendDirect)
			broadcasts.GET("", broadcastHandler.List)
			broadcasts.GET("/:id", broadcastHandler.Get)
			broadcasts.PUT("/:id/read", broadcastHandler.MarkRead)
			broadcasts.DELETE("/:id", broadcastHandler.Delete)
		}

		admin := v1.Group("/admin")
		admin.Use(jwtSvc.AuthMiddleware())
		{
			admin.GET("/conversations/:id/messages", adminHandler.ConversationMessages)
			admin.GET("/conversations/:id/access-log", adminHandler.AccessLog)
		}
	}

	router.GET("/ws", websocket.WsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}
