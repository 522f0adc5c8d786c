package server

import (
	"fmt"
	"os"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()

	// LoggerWithFormatter middleware will write the logs to gin.DefaultWriter
	// By default gin.DefaultWriter = os.Stdout
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = 32 << 20
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	typingStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: s.typingLimit(),
	})
	limitTyping := limitRatePerUser(typingStore)

	apirouter := router.Group("/api/v1")
	apirouter.GET("/health", s.handleHealth())

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())

	authorized.POST("/conversations", s.handleStartConversation())
	authorized.GET("/conversations", s.handleInbox())
	authorized.GET("/conversations/:id/messages", s.handleListMessages())
	authorized.POST("/conversations/:id/messages", s.handleSendMessage())
	authorized.POST("/conversations/:id/read", s.handleMarkRead())
	authorized.PUT("/conversations/:id/typing", limitTyping, s.handleSetTyping())
	authorized.GET("/conversations/:id/typing", s.handleListTyping())

	authorized.POST("/messages/:id/reactions", s.handleToggleReaction())
	authorized.GET("/messages/:id/reactions", s.handleListReactions())

	authorized.PUT("/presence", s.handleSetPresence())
	authorized.GET("/presence/:userID", s.handleGetPresence())

	authorized.GET("/templates", s.handleListTemplates())
	authorized.POST("/templates", s.handleCreateTemplate())
	authorized.PUT("/templates/:id", s.handleUpdateTemplate())
	authorized.DELETE("/templates/:id", s.handleDeleteTemplate())
	authorized.POST("/templates/:id/use", s.handleUseTemplate())

	authorized.PUT("/devices", s.handleRegisterDevice())
	authorized.POST("/media", s.handleUploadMedia())

	authorized.GET("/ws", s.handleWebsocket())
}

func (s *Server) typingLimit() uint {
	if s.Config == nil || s.Config.TypingRateLimit == 0 {
		return 5
	}
	return s.Config.TypingRateLimit
}
