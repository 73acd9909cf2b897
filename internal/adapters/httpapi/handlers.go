package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"brainrotMarket/internal/app"
	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

type handlers struct {
	trades        TradeService
	notifications ports.NotificationRepository
	catalog       CacheInvalidator
	logger        ports.Logger
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ports.ErrInvalidState), errors.Is(err, ports.ErrAlreadyAccepted):
		return http.StatusConflict
	case errors.Is(err, ports.ErrSelfJoin):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrExpired):
		return http.StatusGone
	case errors.Is(err, ports.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ports.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(c.Request.Context(), err, "Request failed", map[string]interface{}{"path": c.FullPath()})
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *handlers) listTrades(c *gin.Context) {
	filter := ports.TradeFilter{
		Status:        domain.TradeStatus(c.Query("status")),
		ParticipantID: c.Query("participant"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		filter.Limit = limit
	}
	trades, err := h.trades.ListTrades(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (h *handlers) getTrade(c *gin.Context) {
	trade, err := h.trades.ViewTrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}

func (h *handlers) createTrade(c *gin.Context) {
	var req app.CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	trade, err := h.trades.CreateTrade(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (h *handlers) valueItem(c *gin.Context) {
	var sel app.ItemSelection
	if err := c.ShouldBindJSON(&sel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	v, err := h.trades.ValueItem(c.Request.Context(), sel)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type transitionFunc func(ctx context.Context, id, userID string) (*domain.Trade, error)

func (h *handlers) transition(fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		trade, err := fn(c.Request.Context(), c.Param("id"), currentUser(c))
		if err != nil {
			// An expired join still returns the now-failed trade.
			if errors.Is(err, ports.ErrExpired) && trade != nil {
				c.JSON(http.StatusGone, gin.H{"error": err.Error(), "trade": trade})
				return
			}
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, trade)
	}
}

func (h *handlers) joinTrade(c *gin.Context)    { h.transition(h.trades.JoinTrade)(c) }
func (h *handlers) acceptTrade(c *gin.Context)  { h.transition(h.trades.AcceptTrade)(c) }
func (h *handlers) declineTrade(c *gin.Context) { h.transition(h.trades.DeclineTrade)(c) }
func (h *handlers) cancelTrade(c *gin.Context)  { h.transition(h.trades.CancelTrade)(c) }

func (h *handlers) userStats(c *gin.Context) {
	stats, err := h.trades.GetUserStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *handlers) listNotifications(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}
	list, err := h.notifications.ListNotifications(c.Request.Context(), currentUser(c), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *handlers) invalidateCatalog(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "catalog cache disabled"})
		return
	}
	if itemID := c.Query("item"); itemID != "" {
		h.catalog.InvalidateItem(itemID)
		h.logger.Info(c.Request.Context(), "Catalog item invalidated via API", map[string]interface{}{"itemID": itemID})
		c.Status(http.StatusNoContent)
		return
	}
	h.catalog.Invalidate()
	h.logger.Info(c.Request.Context(), "Catalog cache invalidated via API")
	c.Status(http.StatusNoContent)
}
