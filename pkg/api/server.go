package api

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/marauder-link/pkg/config"
	"github.com/ExclusiveAccount/marauder-link/pkg/engine"
	"github.com/ExclusiveAccount/marauder-link/pkg/export"
	"github.com/ExclusiveAccount/marauder-link/pkg/models"
)

// Server exposes the engine's state and actions over HTTP for the web
// dashboard. It is presentation glue only: everything it serves comes from
// engine snapshots and the observer interface.
type Server struct {
	cfg    config.Config
	router *gin.Engine
	engine *engine.Engine
	logger *logrus.Logger

	// RawHistory, when set, backs the raw serial view.
	rawHistory func() []string

	mu      sync.Mutex
	clients map[chan streamMessage]bool
}

// streamMessage is one server-sent event pushed to dashboard clients.
type streamMessage struct {
	Kind      string               `json:"kind"`
	EventType string               `json:"event_type,omitempty"`
	Record    *models.DeviceRecord `json:"record,omitempty"`
}

// NewServer wires the dashboard to an engine. The server registers a
// single observer that fans notifications out to connected stream clients
// over buffered channels; a slow client drops messages instead of ever
// blocking the engine.
func NewServer(cfg config.Config, eng *engine.Engine, rawHistory func() []string, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	s := &Server{
		cfg:        cfg,
		router:     router,
		engine:     eng,
		logger:     logger,
		rawHistory: rawHistory,
		clients:    make(map[chan streamMessage]bool),
	}

	eng.RegisterObserver(s.onNotification)
	s.setupRoutes()
	return s
}

// Start runs the HTTP server. Blocks.
func (s *Server) Start() error {
	s.logger.Infof("Starting dashboard server on port %s", s.cfg.DashboardPort)
	return s.router.Run(":" + s.cfg.DashboardPort)
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/devices", s.handleDevices)
		api.GET("/activity", s.handleActivity)
		api.GET("/raw", s.handleRaw)
		api.GET("/events", s.handleEvents)

		api.POST("/actions/:action", s.handleAction)

		api.GET("/sessions", s.handleListSessions)
		api.POST("/sessions/start", s.handleStartSession)
		api.POST("/sessions/stop", s.handleStopSession)
		api.POST("/sessions/export", s.handleExportSession)
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected":     s.engine.IsConnected(),
		"scan_state":    s.engine.ScanState(),
		"recording":     s.engine.IsRecording(),
		"session_path":  s.engine.SessionPath(),
		"ap_count":      len(s.engine.APs()),
		"station_count": len(s.engine.Stations()),
		"ble_count":     len(s.engine.BLEDevices()),
	})
}

func (s *Server) handleDevices(c *gin.Context) {
	switch models.Category(c.Query("category")) {
	case models.CategoryAP:
		c.JSON(http.StatusOK, s.engine.APs())
	case models.CategoryStation:
		c.JSON(http.StatusOK, s.engine.Stations())
	case models.CategoryBLE:
		c.JSON(http.StatusOK, s.engine.BLEDevices())
	case "":
		c.JSON(http.StatusOK, gin.H{
			"aps":      s.engine.APs(),
			"stations": s.engine.Stations(),
			"ble":      s.engine.BLEDevices(),
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
	}
}

func (s *Server) handleActivity(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Activity())
}

func (s *Server) handleRaw(c *gin.Context) {
	if s.rawHistory == nil {
		c.JSON(http.StatusOK, []string{})
		return
	}
	c.JSON(http.StatusOK, s.rawHistory())
}

func (s *Server) handleAction(c *gin.Context) {
	var params engine.Params
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	err := s.engine.Dispatch(engine.Action(c.Param("action")), params)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "dispatched"})
	case errors.Is(err, engine.ErrNoTransport):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := engine.ListSessions(s.cfg.SessionsDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleStartSession(c *gin.Context) {
	path, err := s.engine.StartRecording()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": path})
}

func (s *Server) handleStopSession(c *gin.Context) {
	if err := s.engine.StopRecording(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) handleExportSession(c *gin.Context) {
	var req struct {
		Session string `json:"session" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	csvPath, err := export.ExportSessionFile(req.Session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"csv": csvPath})
}

// handleEvents streams engine notifications to the client as server-sent
// events. The engine never calls into HTTP handling directly; it pushes to
// a buffered per-client channel that this handler drains.
func (s *Server) handleEvents(c *gin.Context) {
	ch := make(chan streamMessage, 256)
	s.addClient(ch)
	defer s.removeClient(ch)

	c.Stream(func(w io.Writer) bool {
		select {
		case msg := <-ch:
			c.SSEvent("update", msg)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) onNotification(n engine.Notification) {
	msg := streamMessage{Kind: n.Kind, Record: n.Record}
	if n.Event != nil {
		msg.EventType = n.Event.Type()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- msg:
		default:
			// Client is not keeping up; drop rather than block the engine.
		}
	}
}

func (s *Server) addClient(ch chan streamMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[ch] = true
}

func (s *Server) removeClient(ch chan streamMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, ch)
}
