package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"studenthelper/internal/infra/config"
	"studenthelper/internal/infra/obs"
)

type AuthHTTP interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
}

type MessageHTTP interface {
	Conversations(c *gin.Context)
	History(c *gin.Context)
	Send(c *gin.Context)
	Delete(c *gin.Context)
}

type Handlers struct {
	Auth           AuthHTTP
	Message        MessageHTTP
	AuthMiddleware gin.HandlerFunc
}

// NewServer builds the devserver router. Routes mirror the backend the
// browser client consumes: auth is public, everything under /api/message
// requires a bearer token.
func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := NewRouter(obsMW, health, h)
	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

// NewRouter is split out so handler tests can run requests through the
// full middleware chain.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
	}
	if h.Message != nil {
		messages := api.Group("/message")
		if h.AuthMiddleware != nil {
			messages.Use(h.AuthMiddleware)
		}
		messages.GET("/conversations", h.Message.Conversations)
		messages.GET("/:otherUserId", h.Message.History)
		messages.POST("", h.Message.Send)
		messages.DELETE("/:id", h.Message.Delete)
	}

	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
