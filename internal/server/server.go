package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parcelflow/parcelflow/internal/assignment"
	assignmentdomain "github.com/parcelflow/parcelflow/internal/assignment/domain"
	"github.com/parcelflow/parcelflow/internal/audit"
	auditdomain "github.com/parcelflow/parcelflow/internal/audit/domain"
	"github.com/parcelflow/parcelflow/internal/config"
	"github.com/parcelflow/parcelflow/internal/dispute"
	disputedomain "github.com/parcelflow/parcelflow/internal/dispute/domain"
	"github.com/parcelflow/parcelflow/internal/hub"
	hubdomain "github.com/parcelflow/parcelflow/internal/hub/domain"
	"github.com/parcelflow/parcelflow/internal/merchant"
	merchantdomain "github.com/parcelflow/parcelflow/internal/merchant/domain"
	obslogger "github.com/parcelflow/parcelflow/internal/observability/logger"
	obsmetrics "github.com/parcelflow/parcelflow/internal/observability/metrics"
	"github.com/parcelflow/parcelflow/internal/parcel"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	"github.com/parcelflow/parcelflow/internal/pricing"
	pricingdomain "github.com/parcelflow/parcelflow/internal/pricing/domain"
	"github.com/parcelflow/parcelflow/internal/rider"
	riderdomain "github.com/parcelflow/parcelflow/internal/rider/domain"
	"github.com/parcelflow/parcelflow/internal/transaction"
	transactiondomain "github.com/parcelflow/parcelflow/internal/transaction/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	audit.Module,
	hub.Module,
	rider.Module,
	merchant.Module,
	pricing.Module,
	transaction.Module,
	parcel.Module,
	assignment.Module,
	dispute.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	parcelSvc      parceldomain.Service
	hubSvc         hubdomain.Service
	riderSvc       riderdomain.Service
	merchantSvc    merchantdomain.Service
	pricingSvc     pricingdomain.Service
	assignmentSvc  assignmentdomain.Service
	disputeSvc     disputedomain.Service
	transactionSvc transactiondomain.Service
	auditSvc       auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	ParcelSvc      parceldomain.Service
	HubSvc         hubdomain.Service
	RiderSvc       riderdomain.Service
	MerchantSvc    merchantdomain.Service
	PricingSvc     pricingdomain.Service
	AssignmentSvc  assignmentdomain.Service
	DisputeSvc     disputedomain.Service
	TransactionSvc transactiondomain.Service
	AuditSvc       auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		parcelSvc:      p.ParcelSvc,
		hubSvc:         p.HubSvc,
		riderSvc:       p.RiderSvc,
		merchantSvc:    p.MerchantSvc,
		pricingSvc:     p.PricingSvc,
		assignmentSvc:  p.AssignmentSvc,
		disputeSvc:     p.DisputeSvc,
		transactionSvc: p.TransactionSvc,
		auditSvc:       p.AuditSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", ActorContext())

	// -------- Parcels --------
	v1.POST("/parcels", s.CreateParcel)
	v1.GET("/parcels", s.ListParcels)
	v1.GET("/parcels/:id", s.GetParcelByID)
	v1.POST("/parcels/:id/advance", s.AdvanceParcel)
	v1.POST("/parcels/:id/assign", s.AssignRider)
	v1.POST("/parcels/:id/unassign", s.UnassignRider)
	v1.GET("/parcels/:id/next-hop", s.ResolveNextHop)

	// -------- Hubs --------
	v1.GET("/hubs", s.ListHubs)
	v1.POST("/hubs", s.CreateHub)
	v1.GET("/hubs/:id", s.GetHubByID)
	v1.PATCH("/hubs/:id", s.UpdateHub)
	v1.POST("/hubs/:id/deactivate", s.DeactivateHub)

	// -------- Riders --------
	v1.GET("/riders", s.ListRiders)
	v1.POST("/riders", s.CreateRider)
	v1.GET("/riders/:id", s.GetRiderByID)
	v1.PATCH("/riders/:id", s.UpdateRider)
	v1.POST("/riders/:id/suspend", s.SuspendRider)

	// -------- Merchants --------
	v1.GET("/merchants", s.ListMerchants)
	v1.POST("/merchants", s.CreateMerchant)
	v1.GET("/merchants/:id", s.GetMerchantByID)
	v1.PATCH("/merchants/:id", s.UpdateMerchant)
	v1.POST("/merchants/:id/verify", s.VerifyMerchant)
	v1.POST("/merchants/:id/suspend", s.SuspendMerchant)

	// -------- Disputes --------
	v1.GET("/disputes", s.ListDisputes)
	v1.POST("/disputes", s.OpenDispute)
	v1.GET("/disputes/:id", s.GetDisputeByID)
	v1.POST("/disputes/:id/resolve", s.ResolveDispute)

	// -------- Pricing --------
	v1.GET("/pricing", s.GetCurrentPricing)
	v1.GET("/pricing/history", s.ListPricingHistory)
	v1.PUT("/pricing", s.UpdatePricing)
	v1.POST("/pricing/quote", s.QuoteFare)

	// -------- Transactions --------
	v1.GET("/transactions", s.ListTransactions)
	v1.POST("/transactions", s.RecordTransaction)

	v1.GET("/audit-logs", s.ListAuditLogs)
}
