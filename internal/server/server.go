package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	carrierdomain "github.com/dotfilings/dotfilings/internal/carrier/domain"
	"github.com/dotfilings/dotfilings/internal/clock"
	"github.com/dotfilings/dotfilings/internal/config"
	"github.com/dotfilings/dotfilings/internal/fees"
	filingdomain "github.com/dotfilings/dotfilings/internal/filing/domain"
	"github.com/dotfilings/dotfilings/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	db         *gorm.DB
	genID      *snowflake.Node
	filingSvc  filingdomain.Service
	carrierSvc carrierdomain.Service
	feesCalc   *fees.Calculator
	feeCfg     *config.FeeConfigHolder
	limiter    *ratelimit.LookupLimiter
	clock      clock.Clock
}

func (s *Server) now() time.Time {
	return s.clock.Now()
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	DB         *gorm.DB
	GenID      *snowflake.Node
	FilingSvc  filingdomain.Service
	CarrierSvc carrierdomain.Service
	FeesCalc   *fees.Calculator
	FeeCfg     *config.FeeConfigHolder
	Limiter    *ratelimit.LookupLimiter `optional:"true"`
	Clock      clock.Clock
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		db:         p.DB,
		genID:      p.GenID,
		filingSvc:  p.FilingSvc,
		carrierSvc: p.CarrierSvc,
		feesCalc:   p.FeesCalc,
		feeCfg:     p.FeeCfg,
		limiter:    p.Limiter,
		clock:      p.Clock,
	}

	s.registerAPIRoutes()
	s.registerStaticRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/carriers/lookup", s.LookupCarrier)

	v1.POST("/filings", s.CreateFiling)
	v1.GET("/filings", s.ListFilings)
	v1.GET("/filings/resume/:token", s.ResumeFiling)
	v1.POST("/filings/:id/step", s.AdvanceFilingStep)
	v1.POST("/filings/:id/attachments/:name", s.UploadAttachment)
	v1.POST("/filings/:id/complete", s.CompleteFiling)

	v1.GET("/fees/ucr", s.UCRFeeSchedule)
}

func (s *Server) registerStaticRoutes() {
	if dir := s.cfg.Storage.Dir; dir != "" {
		s.engine.Static("/attachments", dir)
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
