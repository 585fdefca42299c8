package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"debate_live/internal/api/handlers"
	"debate_live/internal/middleware"
	"debate_live/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User)
	topicHandler := handlers.NewTopicHandler(services.Topic)
	debateHandler := handlers.NewDebateHandler(services.Debate)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocket)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// 公開路由
	{
		// 用戶認證相關
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware())
	{
		// 辯論題目相關
		topics := authorized.Group("/topics")
		{
			topics.GET("", topicHandler.ListTopics)   // 獲取題目列表
			topics.POST("", topicHandler.CreateTopic) // 創建題目
			topics.GET("/:id", topicHandler.GetTopic) // 獲取題目信息
		}

		// 辯論列表相關
		debates := authorized.Group("/debates")
		{
			debates.GET("", debateHandler.ListDebates)              // 獲取開放辯論列表
			debates.POST("", debateHandler.CreateDebate)            // 發起辯論
			debates.GET("/:roomId", debateHandler.GetDebate)        // 獲取辯論紀錄
			debates.POST("/:roomId/join", debateHandler.JoinDebate) // 報名加入辯論
		}

		// WebSocket 連接點，房間協議與信令都走這裡
		authorized.GET("/ws", wsHandler.HandleWebSocket)
	}
}
