package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Gateway/internal/adapters/signal"
	"github.com/dkeye/Gateway/internal/app/orch"
	"github.com/dkeye/Gateway/internal/config"
	"github.com/dkeye/Gateway/internal/core"
	"github.com/dkeye/Gateway/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

// ClientTokenMiddleware keeps a stable per-browser token in the signed
// session cookie so reconnects of the same client can be correlated in logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client token")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// RequestLogger writes one zerolog line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("module", "adapters.http").
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

type statusResponse struct {
	OK      bool   `json:"ok"`
	TS      int64  `json:"ts"`
	Service string `json:"service"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(RequestLogger())
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("GatewaySessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/_status", func(c *gin.Context) {
		c.JSON(http.StatusOK, statusResponse{
			OK:      true,
			TS:      time.Now().UnixMilli(),
			Service: cfg.ServiceName,
		})
	})
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "%s running", cfg.ServiceName)
	})

	ctrl := signal.NewSignalWSController(o, cfg)
	r.GET(cfg.WSPath, func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	api := r.Group("/api")

	// GET /api/rooms: list rooms
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.Rooms.List(), "sessions": o.Registry.Len()})
	})

	// GET /api/rooms/:name/members: empty list for an unknown room
	api.GET("/rooms/:name/members", func(c *gin.Context) {
		room, ok := o.Rooms.Get(domain.RoomName(c.Param("name")))
		if !ok {
			c.JSON(http.StatusOK, []core.MemberDTO{})
			return
		}
		c.JSON(http.StatusOK, room.MembersSnapshot())
	})

	log.Info().Str("module", "adapters.http").Str("ws_path", cfg.WSPath).Msg("router setup")
	return r
}
