// Package api handles HTTP and WebSocket API endpoints
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/thereceipt/receipt-studio/internal/auth"
	"github.com/thereceipt/receipt-studio/internal/catalog"
	"github.com/thereceipt/receipt-studio/internal/config"
	"github.com/thereceipt/receipt-studio/internal/credits"
	"github.com/thereceipt/receipt-studio/internal/events"
	"github.com/thereceipt/receipt-studio/internal/session"
	"github.com/thereceipt/receipt-studio/internal/store"
)

// Deps are the services the API exposes. Credits and Saved may be nil.
type Deps struct {
	Config   *config.Config
	Catalog  *catalog.Catalog
	Sessions *session.Manager
	Credits  *credits.Service
	Saved    store.ReceiptRepository
	Tokens   *auth.TokenManager
	Bus      *events.Bus
	Logger   *slog.Logger
}

// Server is the API server
type Server struct {
	router   *gin.Engine
	deps     Deps
	hub      *Hub
	limiter  *RateLimiter
	upgrader websocket.Upgrader
	logger   *slog.Logger
	http     *http.Server
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(CORS(cfg.CORS))

	window := time.Duration(cfg.RateLimit.Duration) * time.Second

	server := &Server{
		router:  router,
		deps:    deps,
		hub:     NewHub(deps.Bus, logger),
		limiter: NewRateLimiter(cfg.RateLimit.Requests, window),
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.CORS.AllowedOrigins),
		},
	}

	server.setupRoutes()
	server.http = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := s.router.Group("/api/v1")
	v1.Use(Authenticate(s.deps.Tokens))

	v1.GET("/templates", s.handleListTemplates)
	v1.GET("/templates/:id", s.handleGetTemplate)
	v1.GET("/sections/palette", s.handlePalette)

	sessions := v1.Group("/sessions")
	sessions.POST("", s.handleOpenSession)
	sessions.GET("/:id", s.handleGetSession)
	sessions.DELETE("/:id", s.handleCloseSession)
	sessions.PUT("/:id/settings", s.handleUpdateSettings)
	sessions.PUT("/:id/name", s.handleRename)
	sessions.POST("/:id/sections", s.handleAddSection)
	sessions.POST("/:id/sections/reorder", s.handleReorderSections)
	sessions.PATCH("/:id/sections/:sid", s.handleUpdateSection)
	sessions.DELETE("/:id/sections/:sid", s.handleRemoveSection)
	sessions.POST("/:id/sections/:sid/duplicate", s.handleDuplicateSection)
	sessions.POST("/:id/reset", s.handleReset)
	sessions.GET("/:id/document", s.handleExportJSON)
	sessions.PUT("/:id/document", s.handleImportJSON)
	sessions.GET("/:id/preview", s.handlePreview)
	sessions.GET("/:id/artifacts/:aid", s.handleGetArtifact)
	sessions.POST("/:id/command", s.handleCommand)

	limited := sessions.Group("", s.limiter.Middleware())
	limited.POST("/:id/export", s.handleExport)
	limited.POST("/:id/download", RequireUser(), s.handleDownload)
	limited.POST("/:id/print", s.handlePrint)
	sessions.POST("/:id/save", RequireUser(), s.handleSave)

	user := v1.Group("", RequireUser())
	user.GET("/saved", s.handleListSaved)
	user.DELETE("/saved/:template_id", s.handleDeleteSaved)
	user.GET("/credits", s.handleBalance)
	user.GET("/credits/history", s.handleHistory)

	v1.POST("/webhooks/payments", s.handlePaymentWebhook)

	v1.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the API server and blocks until it stops
func (s *Server) Run(addr string) error {
	s.http.Addr = addr
	s.logger.Info("api listening", "addr", addr)

	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
