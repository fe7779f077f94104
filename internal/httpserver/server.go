// Package httpserver exposes the console and its history archive over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tinytelemetry/debugconsole/internal/blendshape"
	"github.com/tinytelemetry/debugconsole/internal/console"
	"github.com/tinytelemetry/debugconsole/internal/duckdb"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:3000"

// ConsoleHub is the narrow hub contract required by the HTTP API.
type ConsoleHub interface {
	Snapshot(ctx context.Context) (console.Snapshot, error)
	Do(ctx context.Context, fn func(*console.Store)) error
}

// Archive is the narrow archive contract required by the HTTP API.
type Archive interface {
	ExecuteQuery(query string) ([]map[string]any, error)
	TableRowCounts() (map[string]int64, error)
	TotalHistoryCount() (int64, error)
	TopFingerprints(limit int) ([]duckdb.FingerprintCount, error)
}

// Config holds optional server settings.
type Config struct {
	// Archive is nil when history archiving is disabled.
	Archive Archive
	Logger  *zap.Logger
}

// Server provides an HTTP API over the live console.
type Server struct {
	addr      string
	hub       ConsoleHub
	archive   Archive
	logger    *zap.Logger
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	stopOnce  sync.Once
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, hub ConsoleHub, conf ...Config) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	var cfg Config
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		hub:       hub,
		archive:   cfg.Archive,
		logger:    cfg.Logger.With(zap.String("component", "http")),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)

	api.GET("/entries", s.handleEntries)
	api.DELETE("/entries", s.handleClear)
	api.GET("/entries/:fingerprint", s.handleEntry)
	api.DELETE("/entries/:fingerprint", s.handleRemoveEntry)

	api.GET("/severities", s.handleSeverities)
	api.PUT("/severities/:name", s.handleSetSeverity)

	api.POST("/collapse", s.handleToggleCollapse)
	api.PUT("/collapse", s.handleSetCollapse)

	api.GET("/schema", s.handleSchema)
	api.POST("/query", s.handleQuery)
	api.GET("/archive/top", s.handleTopFingerprints)

	api.POST("/blendshapes/map", s.handleBlendshapeMap)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.addr, err)
	}
	s.listener = listener
	s.startTime = time.Now()
	s.logger.Info("listening", zap.String("addr", listener.Addr().String()))

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started, or the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		if s.server == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(c *gin.Context) {
	snap, err := s.hub.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "console unavailable"})
		return
	}

	body := gin.H{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).String(),
		"mode":     snap.ModeName,
		"live":     snap.LiveCount,
		"total":    snap.Total,
		"accepted": snap.Accepted,
		"dropped":  snap.Dropped,
		"rejected": snap.Rejected,
	}
	if s.archive != nil {
		archived, err := s.archive.TotalHistoryCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read archive metrics"})
			return
		}
		body["archived"] = archived
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleEntries(c *gin.Context) {
	snap, err := s.hub.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "console unavailable"})
		return
	}
	if c.Query("visible") == "true" {
		snap.Rows = snap.VisibleRows()
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleEntry(c *gin.Context) {
	fp, err := console.ParseFingerprint(c.Param("fingerprint"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fingerprint"})
		return
	}

	var (
		row   console.RowView
		found bool
	)
	if err := s.hub.Do(c.Request.Context(), func(st *console.Store) {
		if e, ok := st.EntryByFingerprint(fp); ok {
			row, found = e.View(), true
		}
	}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "console unavailable"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) handleRemoveEntry(c *gin.Context) {
	fp, err := console.ParseFingerprint(c.Param("fingerprint"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fingerprint"})
		return
	}

	var removed bool
	if err := s.hub.Do(c.Request.Context(), func(st *console.Store) {
		if e, ok := st.EntryByFingerprint(fp); ok {
			removed = st.RemoveEntry(e)
		}
	}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "console unavailable"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClear(c *gin.Context) {
	if err := s.hub.Do(c.Request.Context(), func(st *console.Store) { st.Clear() }); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "console unavailable"})
		return
	}
	s.logger.Info("console cleared")
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSeverities(c *gin.Context) {
	snap, err := s.hub.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "console unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"severities": snap.Severities, "total": snap.Total})
}

func (s *Server) handleSetSeverity(c *gin.Context) {
	var req struct {
		Visible *bool `json:"visible" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing visible field"})
		return
	}

	name := c.Param("name")
	var changed, ok bool
	if err := s.hub.Do(c.Request.Context(), func(st *console.Store) {
		changed, ok = st.SetSeverityVisible(name, *req.Visible)
	}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "console unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown severity: " + name})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "visible": *req.Visible, "changed": changed})
}

func (s *Server) handleToggleCollapse(c *gin.Context) {
	var mode console.Mode
	if err := s.hub.Do(c.Request.Context(), func(st *console.Store) {
		mode = st.ToggleCollapseMode()
	}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "console unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode.String(), "changed": true})
}

func (s *Server) handleSetCollapse(c *gin.Context) {
	var req struct {
		Collapsed *bool `json:"collapsed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing collapsed field"})
		return
	}

	var (
		mode    console.Mode
		changed bool
	)
	if err := s.hub.Do(c.Request.Context(), func(st *console.Store) {
		changed = st.SetCollapse(*req.Collapsed)
		mode = st.Mode()
	}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "console unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode.String(), "changed": changed})
}

func (s *Server) handleSchema(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}

	tables, err := s.archive.ExecuteQuery(
		"SELECT table_name, column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' ORDER BY table_name, ordinal_position",
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read schema metadata"})
		return
	}

	schema := make(map[string][]map[string]string)
	for _, row := range tables {
		tableName := fmt.Sprintf("%v", row["table_name"])
		schema[tableName] = append(schema[tableName], map[string]string{
			"column": fmt.Sprintf("%v", row["column_name"]),
			"type":   fmt.Sprintf("%v", row["data_type"]),
		})
	}

	counts, err := s.archive.TableRowCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read table row counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"description": duckdb.SchemaDescription(),
		"tables":      schema,
		"row_counts":  counts,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}

	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	results, err := s.archive.ExecuteQuery(req.SQL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var columns []string
	if len(results) > 0 {
		for col := range results[0] {
			columns = append(columns, col)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	})
}

func (s *Server) handleTopFingerprints(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	top, err := s.archive.TopFingerprints(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read archive"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"top": top})
}

func (s *Server) handleBlendshapeMap(c *gin.Context) {
	var req struct {
		Shapes          []string               `json:"shapes" binding:"required"`
		Expressions     []blendshape.Candidate `json:"expressions"`
		AllowDuplicates bool                   `json:"allow_duplicates"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing shapes field"})
		return
	}

	ids := blendshape.AutoGenerateMapping(req.Shapes, req.Expressions, req.AllowDuplicates)
	mapping := make([]gin.H, len(ids))
	for i, id := range ids {
		mapping[i] = gin.H{"shape": req.Shapes[i], "id": id}
	}
	c.JSON(http.StatusOK, gin.H{"mapping": mapping})
}
