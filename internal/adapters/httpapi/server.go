// Package httpapi exposes the trade service over HTTP with gin.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"brainrotMarket/internal/app"
	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

// UserHeader carries the caller identity set by the authenticating proxy.
const UserHeader = "X-User-ID"

const defaultRequestTimeout = 10 * time.Second

// TradeService is the application surface the handlers drive.
type TradeService interface {
	ValueItem(ctx context.Context, sel app.ItemSelection) (*app.Valuation, error)
	CreateTrade(ctx context.Context, ownerID string, req app.CreateTradeRequest) (*domain.Trade, error)
	ViewTrade(ctx context.Context, id string) (*domain.Trade, error)
	ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error)
	JoinTrade(ctx context.Context, id, userID string) (*domain.Trade, error)
	AcceptTrade(ctx context.Context, id, userID string) (*domain.Trade, error)
	DeclineTrade(ctx context.Context, id, userID string) (*domain.Trade, error)
	CancelTrade(ctx context.Context, id, userID string) (*domain.Trade, error)
	GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error)
}

// CacheInvalidator drops cached catalog data.
type CacheInvalidator interface {
	Invalidate()
	InvalidateItem(id string)
}

// WebsocketServer upgrades a request into a notification stream for userID.
type WebsocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string)
}

// Config holds the server dependencies.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
	Logger         ports.Logger
	Trades         TradeService
	Notifications  ports.NotificationRepository
	Catalog        CacheInvalidator // Optional
	Websocket      WebsocketServer  // Optional
}

// Server wraps the gin engine and its http.Server.
type Server struct {
	cfg    Config
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds the router.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil || cfg.Trades == nil || cfg.Notifications == nil {
		return nil, fmt.Errorf("missing required dependencies for HTTP server")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	s := &Server{cfg: cfg, engine: gin.New()}
	s.engine.Use(gin.Recovery(), requestLogger(cfg.Logger), requestTimeout(cfg.RequestTimeout))
	s.routes()
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() {
	h := &handlers{trades: s.cfg.Trades, notifications: s.cfg.Notifications, catalog: s.cfg.Catalog, logger: s.cfg.Logger}

	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if s.cfg.Websocket != nil {
		s.engine.GET("/ws", requireUser(), s.serveWS)
	}

	api := s.engine.Group("/api")
	{
		api.GET("/trades", h.listTrades)
		api.GET("/trades/:id", h.getTrade)
		api.POST("/valuation", h.valueItem)
		api.GET("/users/:id/stats", h.userStats)
		api.POST("/catalog/invalidate", h.invalidateCatalog)

		authed := api.Group("", requireUser())
		authed.POST("/trades", h.createTrade)
		authed.POST("/trades/:id/join", h.joinTrade)
		authed.POST("/trades/:id/accept", h.acceptTrade)
		authed.POST("/trades/:id/decline", h.declineTrade)
		authed.POST("/trades/:id/cancel", h.cancelTrade)
		authed.GET("/notifications", h.listNotifications)
	}
}

func (s *Server) serveWS(c *gin.Context) {
	s.cfg.Websocket.ServeWS(c.Writer, c.Request, currentUser(c))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	s.cfg.Logger.Info(context.Background(), "HTTP server listening", map[string]interface{}{"addr": s.cfg.Addr})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
