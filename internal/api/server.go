package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/ksred/remind-me/internal/config"
	"github.com/ksred/remind-me/internal/database"
	"github.com/ksred/remind-me/internal/mcp"
	"github.com/ksred/remind-me/internal/services"
	"github.com/ksred/remind-me/internal/utils"
)

type Server struct {
	router      *gin.Engine
	config      *config.Config
	db          *database.Database
	taskService *services.TaskService
	mcpServer   *mcp.Server
	logger      zerolog.Logger
	httpServer  *http.Server
}

// NewServer builds the HTTP surface. mcpServer may be nil, in which case the
// JSON-RPC bridge is not mounted.
func NewServer(cfg *config.Config, db *database.Database, taskService *services.TaskService, mcpServer *mcp.Server, logger zerolog.Logger) (*Server, error) {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger = utils.ForComponent(logger, "http")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware(logger))
	router.Use(LoggerMiddleware(logger))

	corsConfig := cors.DefaultConfig()
	if len(cfg.HTTP.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.AllowOrigins
	} else {
		corsConfig.AllowOrigins = config.NewDefault().HTTP.AllowOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS", "PATCH"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Type", requestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	// Desktop webviews use custom schemes such as tauri://localhost
	corsConfig.CustomSchemas = []string{"tauri://"}

	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		config:      cfg,
		db:          db,
		taskService: taskService,
		mcpServer:   mcpServer,
		logger:      logger,
	}

	server.setupRoutes()

	return server, nil
}

// Router exposes the gin engine, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := s.router.Group("/api/v1")
	{
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", s.createTaskHandler)
			tasks.GET("", s.listTasksHandler)
			tasks.GET("/stats", s.taskStatsHandler)
			tasks.POST("/check-due", s.checkDueHandler)
			tasks.GET("/:id", s.getTaskHandler)
			tasks.PATCH("/:id", s.updateTaskHandler)
			tasks.DELETE("/:id", s.deleteTaskHandler)
			tasks.POST("/:id/complete", s.completeTaskHandler)
			tasks.POST("/:id/reopen", s.reopenTaskHandler)
		}

		v1.GET("/schema", s.schemaHandler)

		if s.mcpServer != nil {
			v1.POST("/mcp", s.HandleMCP)
		}
	}
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// @title Remind Me API
// @version 1.0
// @description Local task tracker with scheduled reminders
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @host localhost:8082
// @BasePath /

// healthHandler godoc
// @Summary Health check
// @Description Reports whether the task store is open and migrated
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (s *Server) healthHandler(c *gin.Context) {
	ctx := c.Request.Context()

	dbHealthy := true
	var dbError string
	if err := s.db.Health(ctx); err != nil {
		dbHealthy = false
		dbError = err.Error()
	}

	status := "healthy"
	if !dbHealthy {
		status = "unhealthy"
	}

	dbStatus := gin.H{
		"healthy": dbHealthy,
		"error":   dbError,
	}
	if dbHealthy {
		if count, err := s.taskService.CountTasks(ctx); err == nil {
			dbStatus["tasks"] = count
		}
	}

	response := gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"database":  dbStatus,
	}

	if !dbHealthy {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}
