package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lawrencezcl/AITurbo/internal/config"
	"github.com/lawrencezcl/AITurbo/internal/models"
	"github.com/lawrencezcl/AITurbo/internal/service"
	"github.com/lawrencezcl/AITurbo/internal/service/wechat"
)

const defaultHistoryLimit = 20

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	History    *service.HistoryService
	Jobs       service.JobStore
	Scheduler  *service.PublishScheduler
	Monitoring *service.MonitoringService
	Sweeper    *service.MonitoringSweeper
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	requestTimeout, err := time.ParseDuration(cfg.WeChat.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid wechat request timeout: %w", err)
	}

	// Initialize services
	history := service.NewHistoryService(db)
	jobs := service.NewJobStore(db)
	monitoring := service.NewMonitoringService(db, logger)
	gateway := wechat.NewClient(logger, wechat.Options{
		BaseURL:        cfg.WeChat.APIBaseURL,
		RequestTimeout: requestTimeout,
		RateLimitRPS:   cfg.WeChat.RateLimitRPS,
	})
	timer := service.NewTimerService(logger)
	scheduler := service.NewPublishScheduler(&cfg.WeChat, logger, jobs, history, gateway, timer, monitoring)

	sweepInterval, err := time.ParseDuration(cfg.Scheduler.SweepInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}
	sweeper := service.NewMonitoringSweeper(monitoring, logger, sweepInterval, cfg.Scheduler.RetentionDays)

	// Create router
	router := gin.New()

	// Create server
	srv := &Server{
		Config:     cfg,
		DB:         db,
		Router:     router,
		Logger:     logger,
		History:    history,
		Jobs:       jobs,
		Scheduler:  scheduler,
		Monitoring: monitoring,
		Sweeper:    sweeper,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// API routes
	api := s.Router.Group("/api/v1")
	{
		publish := api.Group("/publish")
		{
			publish.POST("/schedule", s.handleSchedulePublish)
			publish.DELETE("/schedule/:id", s.handleCancelPublish)
			publish.GET("/jobs", s.handleListJobs)
		}

		history := api.Group("/history")
		{
			history.POST("/articles", s.handleRecordGenerated)
			history.POST("/articles/saved", s.handleRecordSaved)
			history.GET("/articles", s.handleListGenerationHistory)
			history.GET("/publishes", s.handleListPublishHistory)
		}

		monitoring := api.Group("/monitoring")
		{
			monitoring.GET("/errors", s.handleRecentErrors)
		}
	}
}

type scheduleRequest struct {
	MediaID        string `json:"media_id" binding:"required"`
	PublishTime    string `json:"publish_time" binding:"required"`
	EnableMassSend bool   `json:"enable_mass_send"`
}

func (s *Server) handleSchedulePublish(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := s.Scheduler.SchedulePublish(req.MediaID, req.PublishTime, req.EnableMassSend)
	if err != nil {
		if errors.Is(err, service.ErrMissingMediaID) || errors.Is(err, service.ErrInvalidPublishTime) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.Logger.Error("Failed to schedule publish", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to schedule publish"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": jobID})
}

func (s *Server) handleCancelPublish(c *gin.Context) {
	jobID := c.Param("id")

	if err := s.Scheduler.CancelPublish(jobID); err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		case errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			s.Logger.Error("Failed to cancel publish", zap.String("job_id", jobID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel publish"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "status": models.JobStatusRemoved})
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.Jobs.ListJobs(queryLimit(c))
	if err != nil {
		s.Logger.Error("Failed to list scheduled jobs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

type generatedArticleRequest struct {
	Title            string `json:"title" binding:"required"`
	ContentLength    int    `json:"content_length"`
	ImageCount       int    `json:"image_count"`
	Author           string `json:"author"`
	Digest           string `json:"digest"`
	ContentSourceURL string `json:"content_source_url"`
}

func (s *Server) handleRecordGenerated(c *gin.Context) {
	var req generatedArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	author := req.Author
	if author == "" {
		author = s.Config.WeChat.DefaultAuthor
	}

	article := &models.ArticleHistory{
		Title:            req.Title,
		ContentLength:    req.ContentLength,
		ImageCount:       req.ImageCount,
		Author:           author,
		Digest:           req.Digest,
		ContentSourceURL: req.ContentSourceURL,
	}

	id, err := s.History.RecordGenerated(article)
	if err != nil {
		s.Logger.Error("Failed to record generated article", zap.String("title", req.Title), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record article"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

type savedDraftRequest struct {
	MatchKey    string `json:"match_key" binding:"required"`
	MediaID     string `json:"media_id" binding:"required"`
	PublishTime string `json:"publish_time"`
}

func (s *Server) handleRecordSaved(c *gin.Context) {
	var req savedDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var publishTime *time.Time
	if req.PublishTime != "" {
		t, err := service.ParsePublishTime(req.PublishTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		publishTime = &t
	}

	matched, err := s.History.RecordSaved(req.MatchKey, req.MediaID, publishTime)
	if err != nil {
		s.Logger.Error("Failed to record saved draft", zap.String("media_id", req.MediaID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record saved draft"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matched": matched})
}

func (s *Server) handleListGenerationHistory(c *gin.Context) {
	history, err := s.History.ListGenerationHistory(queryLimit(c))
	if err != nil {
		s.Logger.Error("Failed to list generation history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) handleListPublishHistory(c *gin.Context) {
	history, err := s.History.ListPublishHistory(queryLimit(c))
	if err != nil {
		s.Logger.Error("Failed to list publish history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) handleRecentErrors(c *gin.Context) {
	errs, err := s.Monitoring.GetRecentErrors(queryLimit(c))
	if err != nil {
		s.Logger.Error("Failed to list recent errors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list errors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"errors": errs})
}

func queryLimit(c *gin.Context) int {
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			return limit
		}
	}
	return defaultHistoryLimit
}

func (s *Server) Start(ctx context.Context) error {
	// Recover pending jobs before accepting new schedule requests
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start publish scheduler: %w", err)
	}

	if s.Config.Scheduler.Enabled {
		s.Sweeper.Start(ctx)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()
	if s.Config.Scheduler.Enabled {
		s.Sweeper.Stop()
	}

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
