package http

import (
	"net/http"
	"time"

	"livesignal/internal/core/domain"
	"livesignal/internal/core/ports"
	"livesignal/internal/infrastructure/monitoring"
	"livesignal/pkg/cache"
	"livesignal/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const liveListCacheKey = "live:list"

// LiveHandler serves the read side of the presence registry: which
// streamers are live right now.
type LiveHandler struct {
	presence    ports.PresenceRepository
	health      *monitoring.HealthChecker
	cache       *cache.Cache
	logger      *zap.SugaredLogger
	connections func() int
}

func NewLiveHandler(
	presence ports.PresenceRepository,
	health *monitoring.HealthChecker,
	logger *zap.SugaredLogger,
) *LiveHandler {
	return &LiveHandler{
		presence: presence,
		health:   health,
		cache:    cache.NewCache(2 * time.Second),
		logger:   logger,
	}
}

// SetConnectionCounter wires in the signaling server's open connection
// count so /health can report it.
func (h *LiveHandler) SetConnectionCounter(fn func() int) {
	h.connections = fn
}

func (h *LiveHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/live", h.ListLive)
		api.GET("/live/:username", h.GetLive)
	}

	router.GET("/health", h.Health)
}

// ListLive returns every active broadcast. Responses are cached for a
// couple of seconds since the list is polled by every client's home page.
func (h *LiveHandler) ListLive(c *gin.Context) {
	if cached, ok := h.cache.Get(liveListCacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	states, err := h.presence.ListLive(c.Request.Context())
	if err != nil {
		h.logger.Errorw("failed to list live streams", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list live streams"})
		return
	}

	response := gin.H{
		"streams": states,
		"count":   len(states),
	}
	h.cache.Set(liveListCacheKey, response)

	c.JSON(http.StatusOK, response)
}

// GetLive answers "is this streamer live" for a single username.
func (h *LiveHandler) GetLive(c *gin.Context) {
	username := c.Param("username")
	if err := validation.ValidateUsername(username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	live, err := h.presence.IsLive(c.Request.Context(), domain.Identity(username))
	if err != nil {
		h.logger.Errorw("failed to check live status", "streamer", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check live status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"streamer": username,
		"live":     live,
		"room_id":  domain.LiveRoomID(domain.Identity(username)),
	})
}

func (h *LiveHandler) Health(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	body := gin.H{
		"status":    status.Status,
		"timestamp": status.Timestamp,
		"checks":    status.Checks,
	}
	if h.connections != nil {
		body["connections"] = h.connections()
	}
	c.JSON(code, body)
}
