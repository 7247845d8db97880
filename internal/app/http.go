package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vikrantjain/mcp-high-availability/internal/config"
	"github.com/vikrantjain/mcp-high-availability/internal/logger"
	"github.com/vikrantjain/mcp-high-availability/internal/session"
	"github.com/vikrantjain/mcp-high-availability/internal/store"
	"github.com/vikrantjain/mcp-high-availability/internal/tools"

	"github.com/gin-gonic/gin"
)

// SessionHeader carries the caller's session id on every tool call.
const SessionHeader = "Mcp-Session-Id"

const pingTimeout = 2 * time.Second

type callRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// validSID rejects ids that would escape their namespace in the store's
// key scheme. Issued ids are uuids and never contain ':'.
func validSID(sid string) bool {
	return sid != "" && !strings.Contains(sid, ":")
}

func setupHTTP(cfg config.Config) (*gin.Engine, func() error, error) {

	st, cleanup, err := setupInfra(cfg)
	if err != nil {
		return nil, nil, err
	}

	return NewRouter(cfg, st), cleanup, nil
}

// NewRouter assembles the service's HTTP surface over the given store.
func NewRouter(cfg config.Config, st store.Store) *gin.Engine {

	registry := tools.NewRegistry(st, cfg.InstanceID, cfg.SessionTTL)

	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Session handshake
	// ----------------------------

	router.POST("/mcp/connect", func(c *gin.Context) {
		sid := session.NewID()
		logger.Info("session connected", map[string]any{
			"session_id": sid,
			"instance":   cfg.InstanceID,
		})
		c.JSON(200, gin.H{
			"session_id": sid,
			"instance":   cfg.InstanceID,
		})
	})

	// ----------------------------
	// Tool invocation
	// ----------------------------

	router.POST("/mcp/call", func(c *gin.Context) {
		sid := c.GetHeader(SessionHeader)
		if sid == "" {
			c.JSON(400, gin.H{"error": "missing " + SessionHeader + " header"})
			return
		}
		if !validSID(sid) {
			c.JSON(400, gin.H{"error": "invalid session id"})
			return
		}

		var req callRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(400, gin.H{"error": "invalid request body"})
			return
		}

		result, err := registry.Call(c.Request.Context(), sid, req.Name, req.Arguments)
		if err != nil {
			if errors.Is(err, tools.ErrUnknownTool) {
				c.JSON(400, gin.H{"error": err.Error()})
				return
			}
			logger.Error("tool call failed", map[string]any{
				"tool":       req.Name,
				"session_id": sid,
				"error":      err.Error(),
			})
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"result": result})
	})

	// ----------------------------
	// Health probe for the load balancer
	// ----------------------------

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(503, gin.H{
				"status":   "degraded",
				"instance": cfg.InstanceID,
				"store":    "unreachable",
			})
			return
		}
		c.JSON(200, gin.H{"status": "ok", "instance": cfg.InstanceID})
	})

	// ----------------------------
	// Session summary (diagnostics)
	// ----------------------------

	router.GET("/sessions/:id/summary", func(c *gin.Context) {
		sid := c.Param("id")
		if !validSID(sid) {
			c.JSON(400, gin.H{"error": "invalid session id"})
			return
		}
		s := session.New(st, sid, cfg.SessionTTL)
		ctx := c.Request.Context()

		var counter int
		if _, err := s.Get(ctx, "counter", &counter); err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}

		notes, err := s.List(ctx, "notes")
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		if notes == nil {
			notes = []string{}
		}

		var analysis map[string]any
		if ok, err := s.Get(ctx, "analysis_result", &analysis); err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		} else if !ok {
			analysis = nil
		}

		keys, err := s.Keys(ctx)
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		if keys == nil {
			keys = []string{}
		}

		c.JSON(200, gin.H{
			"session_id":      sid,
			"counter":         counter,
			"notes":           notes,
			"analysis_result": analysis,
			"keys":            keys,
			"instance":        cfg.InstanceID,
		})
	})

	return router
}
