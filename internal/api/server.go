// Package api wires every domain engine onto an HTTP surface (spec
// §6.1) via gin. Grounded on tarsy's pkg/api/server.go's
// NewServer/setupRoutes/Start/Shutdown shape, ported from Echo v5 to
// gin-gonic/gin (DESIGN.md: tarsy's echo import was dropped as an
// inconsistency artifact, never present in its own go.mod).
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oracle-health/oracle-backend/internal/config"
	"github.com/oracle-health/oracle-backend/internal/deepdive"
	"github.com/oracle-health/oracle-backend/internal/emailqueue"
	"github.com/oracle-health/oracle-backend/internal/followup"
	"github.com/oracle-health/oracle-backend/internal/llm"
	"github.com/oracle-health/oracle-backend/internal/modelselect"
	"github.com/oracle-health/oracle-backend/internal/photo"
	"github.com/oracle-health/oracle-backend/internal/quickscan"
	"github.com/oracle-health/oracle-backend/internal/report"
	"github.com/oracle-health/oracle-backend/internal/storage"
	"github.com/oracle-health/oracle-backend/internal/tier"
	"github.com/oracle-health/oracle-backend/internal/tracking"
)

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	cfg        *config.Config
	storage    *storage.Client
	llm        *llm.Orchestrator
	models     *modelselect.Selector
	tiers      *tier.Resolver
	quickscan  *quickscan.Engine
	deepdive   *deepdive.Engine
	photo      *photo.Pipeline
	followup   *followup.Engine
	report     *report.Engine
	tracking   *tracking.Engine
	emails     *emailqueue.Engine
	startedAt  time.Time
}

// Deps bundles every dependency the API surface dispatches to.
type Deps struct {
	Config    *config.Config
	Storage   *storage.Client
	LLM       *llm.Orchestrator
	Models    *modelselect.Selector
	Tiers     *tier.Resolver
	QuickScan *quickscan.Engine
	DeepDive  *deepdive.Engine
	Photo     *photo.Pipeline
	FollowUp  *followup.Engine
	Report    *report.Engine
	Tracking  *tracking.Engine
	Emails    *emailqueue.Engine
}

// NewServer creates a new API server with gin and registers every route.
func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders())

	s := &Server{
		router:    r,
		cfg:       deps.Config,
		storage:   deps.Storage,
		llm:       deps.LLM,
		models:    deps.Models,
		tiers:     deps.Tiers,
		quickscan: deps.QuickScan,
		deepdive:  deps.DeepDive,
		photo:     deps.Photo,
		followup:  deps.FollowUp,
		report:    deps.Report,
		tracking:  deps.Tracking,
		emails:    deps.Emails,
		startedAt: time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.MaxMultipartMemory = 2 << 20 // 2 MiB, matches tarsy's server-wide body limit

	s.router.GET("/health", s.healthHandler)
	s.router.GET("/api/health", s.healthHandler)

	api := s.router.Group("/api")

	api.POST("/chat", s.chatHandler)
	api.POST("/health-story", s.healthStoryHandler)

	qs := api.Group("/quick-scan")
	qs.POST("", s.quickScanRunHandler)
	qs.POST("/think-harder", s.quickScanThinkHarderHandler)
	qs.POST("/think-harder-o4", s.quickScanThinkHarderHandler)
	qs.POST("/ultra-think", s.quickScanUltraThinkHandler)
	qs.POST("/ask-more", s.quickScanAskMoreHandler)

	dd := api.Group("/deep-dive")
	dd.POST("/start", s.deepDiveStartHandler)
	dd.POST("/continue", s.deepDiveContinueHandler)
	dd.POST("/complete", s.deepDiveCompleteHandler)
	dd.POST("/think-harder", s.deepDiveThinkHarderHandler)
	dd.POST("/ultra-think", s.deepDiveUltraThinkHandler)
	dd.POST("/ask-more", s.deepDiveAskMoreHandler)
	api.GET("/debug/session/:id", s.deepDiveDebugSessionHandler)

	ph := api.Group("/photo-analysis")
	ph.POST("/sessions", s.photoCreateSessionHandler)
	ph.GET("/sessions", s.photoListSessionsHandler)
	ph.GET("/session/:id", s.photoGetSessionHandler)
	ph.DELETE("/session/:id", s.photoDeleteSessionHandler)
	ph.GET("/session/:id/timeline", s.photoTimelineHandler)
	ph.GET("/session/:id/progression-analysis", s.photoProgressionHandler)
	ph.GET("/session/:id/analysis-history", s.photoAnalysisHistoryHandler)
	ph.POST("/upload", s.photoUploadHandler)
	ph.POST("/analyze", s.photoAnalyzeHandler)
	ph.POST("/reports/photo-analysis", s.photoReportHandler)
	ph.POST("/session/:id/follow-up", s.photoFollowUpHandler)
	ph.POST("/reminders/configure", s.photoConfigureReminderHandler)
	ph.POST("/monitoring/suggest", s.photoMonitoringSuggestHandler)
	ph.GET("/health", s.healthHandler)

	fu := api.Group("/follow-up")
	fu.GET("/questions/:assessment_id", s.followUpQuestionsHandler)
	fu.POST("/submit", s.followUpSubmitHandler)
	fu.GET("/chain/:assessment_id", s.followUpChainHandler)
	fu.POST("/medical-visit/explain", s.followUpExplainHandler)

	rp := api.Group("/report")
	rp.GET("/list/:user_id", s.reportListHandler)
	rp.GET("/:id", s.reportGetHandler)
	rp.POST("/analyze", s.reportAnalyzeHandler)
	for _, t := range append([]string{"comprehensive", "symptom-timeline", "photo-progression", "30-day", "annual", "annual-summary", "specialist", "specialty-triage"}, hyphenated(report.Specialties)...) {
		rp.POST("/"+t, s.reportGenerateHandler(t))
	}
	rp.PUT("/:id/doctor-notes", s.reportDoctorNotesHandler)
	rp.POST("/:id/share", s.reportShareHandler)
	rp.GET("/shared/:token", s.reportSharedHandler)
	rp.POST("/:id/rate", s.reportRateHandler)

	tr := api.Group("/tracking")
	tr.POST("/suggest", s.trackingSuggestHandler)
	tr.POST("/configure", s.trackingConfigureHandler)
	tr.POST("/approve/:suggestion_id", s.trackingApproveHandler)
	tr.POST("/data", s.trackingRecordDataHandler)
	tr.GET("/dashboard", s.trackingDashboardHandler)
	tr.GET("/chart/:config_id", s.trackingChartHandler)
	tr.GET("/configurations", s.trackingConfigurationsHandler)
	tr.GET("/data-points/:config_id", s.trackingDataPointsHandler)
	tr.GET("/past-scans", s.trackingPastScansHandler)
	tr.GET("/past-dives", s.trackingPastDivesHandler)

	em := api.Group("/email")
	em.POST("/send-report", s.emailSendReportHandler)
	em.POST("/send-scan", s.emailSendScanHandler)
	em.POST("/webhooks/sendgrid", s.emailWebhookHandler)
	em.GET("/health", s.healthHandler)
	api.POST("/webhook/email", s.emailWebhookHandler)
}

func hyphenated(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ReplaceAll(n, "_", "-")
	}
	return out
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health and GET /api/health.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	if err := s.storage.Ping(reqCtx); err != nil {
		status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": status, "error": "error", "database": "down"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      status,
		"uptime":      time.Since(s.startedAt).String(),
		"stats":       s.cfg.Stats(),
	})
}
