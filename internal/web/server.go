// Package web exposes the dashboard over HTTP: the chart page plus a small
// JSON API for the series, the range and the stream health.
package web

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/goth-coder/stream-bit/internal/domain"
	"github.com/goth-coder/stream-bit/internal/render"
	"github.com/goth-coder/stream-bit/pkg/logger"
)

// ChartCore is the slice of the orchestrator the handlers need.
type ChartCore interface {
	Series() domain.RenderSeries
	Range() domain.TimeRange
	SetRange(hours int) error
}

// Server serves the chart page and the JSON API. It doubles as the
// orchestrator's status sink so the health endpoint reflects the stream
// state in event order.
type Server struct {
	core ChartCore
	page *render.LineChart
	log  *logrus.Entry

	// dropped reports discarded malformed frames; nil means unknown.
	dropped func() uint64

	httpSrv *http.Server

	mu    sync.RWMutex
	state domain.ConnectionState
}

// NewServer wires the HTTP layer. dropped may be nil.
func NewServer(core ChartCore, page *render.LineChart, dropped func() uint64) *Server {
	return &Server{
		core:    core,
		page:    page,
		log:     logger.WithField("module", "web"),
		dropped: dropped,
		state:   domain.StateIdle,
	}
}

// StreamState records the latest connection state for the health surface.
func (s *Server) StreamState(st domain.ConnectionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Server) streamState() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Router builds the gin handler tree.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleChartPage)

	api := r.Group("/api")
	api.GET("/series", s.handleSeries)
	api.GET("/health", s.handleHealth)
	api.GET("/stream/state", s.handleStreamState)
	api.PUT("/range", s.handleSetRange)

	return r
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Infof("dashboard listening on %s", addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleChartPage(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := s.page.WriteHTML(c.Writer); err != nil {
		s.log.Errorf("render chart page: %v", err)
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

type seriesPoint struct {
	Timestamp string  `json:"timestamp"`
	Price     float64 `json:"price"`
	Label     string  `json:"label,omitempty"`
}

func (s *Server) handleSeries(c *gin.Context) {
	series := s.core.Series()
	points := make([]seriesPoint, series.Len())
	for i := range series.Points {
		points[i] = seriesPoint{
			Timestamp: series.Timestamps[i].Format(time.RFC3339),
			Price:     series.Points[i].InexactFloat64(),
			Label:     series.Labels[i],
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"range_hours": s.core.Range().Hours(),
		"count":       len(points),
		"data":        points,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.streamState()
	body := gin.H{
		"status":       "ok",
		"stream_state": st.String(),
		"live":         st.Live(),
		"points":       s.core.Series().Len(),
	}
	if s.dropped != nil {
		body["dropped_frames"] = s.dropped()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleStreamState(c *gin.Context) {
	st := s.streamState()
	c.JSON(http.StatusOK, gin.H{"state": st.String(), "live": st.Live()})
}

func (s *Server) handleSetRange(c *gin.Context) {
	hours, err := strconv.Atoi(c.Query("hours"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "hours must be an integer"})
		return
	}
	if err := s.core.SetRange(hours); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "range_hours": hours})
}
