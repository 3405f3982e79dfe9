// Package main runs the Balkly partner-voucher API server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/balkly/backend/config"
	"github.com/balkly/backend/internal/auth"
	"github.com/balkly/backend/internal/conversions"
	"github.com/balkly/backend/internal/dashboard"
	"github.com/balkly/backend/internal/emaillogs"
	"github.com/balkly/backend/internal/live"
	"github.com/balkly/backend/internal/middleware"
	"github.com/balkly/backend/internal/models"
	"github.com/balkly/backend/internal/offers"
	"github.com/balkly/backend/internal/partners"
	"github.com/balkly/backend/internal/tracking"
	"github.com/balkly/backend/internal/vouchers"
	"github.com/balkly/backend/pkg/database"
	"github.com/balkly/backend/pkg/queue"
	"github.com/balkly/backend/pkg/redis"
	"github.com/balkly/backend/pkg/response"
	"github.com/balkly/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			OffersBucket:         cfg.AWS.OffersBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := live.NewRedisPubSub(rdb.Client, logger)
	hub := live.NewHub(logger, redisPubSub, redisPubSub)

	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Partners and staff roster
	partnerRepo := partners.NewRepository(pool)
	partnerHandler := partners.NewHandler(partnerRepo, authRepo, logger)

	// Offers
	offerRepo := offers.NewRepository(pool)
	offerHandler := offers.NewHandler(offerRepo, s3Client, logger)

	// Vouchers (claim, lookup, redeem)
	voucherRepo := vouchers.NewRepository(pool)
	voucherSvc := vouchers.NewService(voucherRepo, partnerRepo, offerRepo, cfg.Voucher)
	voucherHandler := vouchers.NewHandler(voucherSvc, partnerRepo, jobQueue, hub, logger)

	// Conversions and commission
	conversionRepo := conversions.NewRepository(pool)
	conversionHandler := conversions.NewHandler(conversionRepo, partnerRepo, logger)

	// Tracking links
	trackingRepo := tracking.NewRepository(pool)
	trackingHandler := tracking.NewHandler(trackingRepo, partnerRepo, rdb, cfg.Voucher.PublicBaseURL, logger)

	// Partner dashboard
	dashboardHandler := dashboard.NewHandler(pool, trackingRepo, rdb, logger)

	// Email delivery history
	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo)

	// WebSocket join check: staff of a partner get their partner's room, admins
	// may name one via ?partner_id=.
	wsCheck := func(partnerIDParam string) live.MembershipCheck {
		return func(token string) (uuid.UUID, uuid.UUID, error) {
			claims, err := jwtService.Validate(token)
			if err != nil {
				return uuid.Nil, uuid.Nil, err
			}
			if claims.Role == string(models.RoleAdmin) && partnerIDParam != "" {
				pid, err := uuid.Parse(partnerIDParam)
				if err != nil {
					return uuid.Nil, uuid.Nil, err
				}
				return claims.UserID, pid, nil
			}
			m, err := partnerRepo.GetMembership(context.Background(), claims.UserID)
			if err != nil {
				return uuid.Nil, uuid.Nil, err
			}
			if m == nil {
				return claims.UserID, uuid.Nil, nil
			}
			return claims.UserID, m.PartnerID, nil
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Tracking redirect (public, no /api prefix so links stay short)
	router.GET("/r/:code", trackingHandler.Redirect)

	v1 := router.Group("/api/v1")

	// Auth (public)
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public voucher surface (guest-safe: redacted lookup and QR)
	v1.GET("/vouchers/:code", voucherHandler.PublicLookup)
	v1.GET("/vouchers/:code/qr", voucherHandler.QR)
	v1.GET("/partners", partnerHandler.ListPublic)
	v1.GET("/partners/:id/offers", offerHandler.ListPublic)
	v1.GET("/offers/:id/image", offerHandler.GetImage)

	// Authenticated users
	api := v1.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/vouchers", voucherHandler.Claim)
		api.GET("/me/vouchers", voucherHandler.ListMine)

		// Staff redemption surface (partner membership resolved per request so
		// admins can act on any partner)
		api.GET("/staff/vouchers/:code", voucherHandler.StaffLookup)
		api.POST("/staff/vouchers/:code/redeem", voucherHandler.Redeem)

		// Partner back office (scoped to the caller's partner)
		partner := api.Group("/partner")
		partner.Use(partners.RequirePartnerStaff(partnerRepo))
		{
			partner.GET("/dashboard", dashboardHandler.Summary)
			partner.GET("/offers", offerHandler.List)
			partner.POST("/offers", offerHandler.Create)
			partner.PATCH("/offers/:id", offerHandler.Update)
			partner.DELETE("/offers/:id", offerHandler.Delete)
			partner.POST("/offers/:id/image", offerHandler.UploadImage)
			partner.GET("/conversions", conversionHandler.List)
			partner.POST("/conversions", conversionHandler.CreateDigital)
			partner.GET("/emails", emailLogsHandler.List)

			staffMgmt := partner.Group("/staff")
			staffMgmt.Use(partners.RequireStaffRole(models.StaffRoleManager, models.StaffRoleOwner))
			{
				staffMgmt.GET("", partnerHandler.ListStaff)
				staffMgmt.POST("", partnerHandler.AddStaff)
				staffMgmt.PATCH("/:id", partnerHandler.UpdateStaff)
				staffMgmt.DELETE("/:id", partnerHandler.RemoveStaff)
			}
		}

		// Platform admin
		admin := api.Group("/admin")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.GET("/users", authHandler.List)
			admin.GET("/partners", partnerHandler.ListAdmin)
			admin.POST("/partners", partnerHandler.Create)
			admin.PATCH("/partners/:id", partnerHandler.Update)
			admin.PATCH("/conversions/:id/status", conversionHandler.UpdateStatus)
		}
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", func(c *gin.Context) {
		live.ServeWs(hub, logger, wsCheck(c.Query("partner_id")))(c)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
