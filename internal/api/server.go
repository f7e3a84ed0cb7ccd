// Package api serves change logs over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roach88/ordertrail/internal/changelog"
	"github.com/roach88/ordertrail/internal/metrics"
)

// ChangeLogger builds the change log of one reception.
type ChangeLogger interface {
	ChangeLog(ctx context.Context, receptionNumber string) ([]changelog.LogEntry, error)
}

// ReceptionLister lists known reception numbers. Optional.
type ReceptionLister interface {
	Receptions(ctx context.Context) ([]string, error)
}

// Server wires the HTTP routes.
type Server struct {
	logs       ChangeLogger
	receptions ReceptionLister
	metrics    *metrics.Registry
	logger     *slog.Logger
	router     *gin.Engine
}

// NewServer builds a server. receptions and reg may be nil.
func NewServer(logger *slog.Logger, logs ChangeLogger, receptions ReceptionLister, reg *metrics.Registry) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{logs: logs, receptions: receptions, metrics: reg, logger: logger}
	s.router = s.setupRouter()
	return s
}

// Router returns the gin engine.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := r.Group("/v1")
	v1.GET("/receptions", s.handleReceptions)
	v1.GET("/receptions/:reception/changelog", s.handleChangeLog)
	return r
}

// ChangeLogResponse is the body of the change-log endpoint.
type ChangeLogResponse struct {
	ReceptionNumber string               `json:"receptionNumber"`
	Entries         []changelog.LogEntry `json:"entries"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleChangeLog(c *gin.Context) {
	reception := strings.TrimSpace(c.Param("reception"))
	if reception == "" {
		s.count("4xx")
		c.JSON(http.StatusBadRequest, gin.H{"error": "reception number is required"})
		return
	}

	entries, err := s.logs.ChangeLog(c.Request.Context(), reception)
	if err != nil {
		s.count("5xx")
		s.logger.Error("build change log failed", "reception", reception, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []changelog.LogEntry{}
	}
	s.count("2xx")
	c.JSON(http.StatusOK, ChangeLogResponse{ReceptionNumber: reception, Entries: entries})
}

func (s *Server) handleReceptions(c *gin.Context) {
	if s.receptions == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "reception listing not supported by this store"})
		return
	}
	list, err := s.receptions.Receptions(c.Request.Context())
	if err != nil {
		s.logger.Error("list receptions failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"receptions": list})
}

func (s *Server) count(status string) {
	if s.metrics != nil {
		s.metrics.ChangeLogRequests.WithLabelValues(status).Inc()
	}
}
