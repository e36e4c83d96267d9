package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "webrecall/internal/app"
	"webrecall/internal/bootstrap"
	"webrecall/internal/cache"
	"webrecall/internal/platform/rabbitmq"
	"webrecall/internal/repository"
	"webrecall/internal/transport/http/handler"
	"webrecall/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	chatLogRepo := repository.NewChatLogRepository(app.MySQL)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	chatLogPublisher := rabbitmq.NewChatLogPublisher(app.MQConn, app.Config.RabbitMQ.ChatLogPersistQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	pageService := appsvc.NewPageService(
		app.Fetcher,
		app.Lexical,
		app.Vector,
		app.AI,
		time.Duration(app.Config.Fetch.TimeoutSeconds)*time.Second,
		time.Duration(app.Config.LLM.EmbedTimeoutSeconds)*time.Second,
	)
	searchService := appsvc.NewSearchService(app.Lexical, app.Config.Search.TopK)
	chatService := appsvc.NewChatService(
		app.Lexical,
		app.Vector,
		app.AI,
		app.AI,
		chatLogPublisher,
		chatLogRepo,
		historyCache,
		app.Config.LLM.MaxTokens,
		app.Config.LLM.Temperature,
		time.Duration(app.Config.LLM.GenerateTimeoutSeconds)*time.Second,
	)

	authHandler := handler.NewAuthHandler(authService)
	pageHandler := handler.NewPageHandler(pageService)
	searchHandler := handler.NewSearchHandler(searchService)
	chatHandler := handler.NewChatHandler(chatService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	pageGroup := v1.Group("/pages")
	pageGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	pageGroup.POST("", pageHandler.Ingest)
	pageGroup.GET("", pageHandler.List)
	pageGroup.DELETE("", pageHandler.Delete)

	v1.GET("/search", middleware.AuthJWT(app.Config.Auth.JWTSecret), searchHandler.Search)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	chatGroup.POST("", chatHandler.Ask)
	chatGroup.GET("/history", chatHandler.GetHistory)

	return router
}
