// Package main runs the background job worker (transactional email, voucher expiry sweep).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/balkly/backend/config"
	"github.com/balkly/backend/internal/emaillogs"
	"github.com/balkly/backend/internal/mailer"
	"github.com/balkly/backend/internal/vouchers"
	"github.com/balkly/backend/internal/worker"
	"github.com/balkly/backend/pkg/database"
	"github.com/balkly/backend/pkg/queue"
	"github.com/balkly/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	smtp := mailer.NewSMTPMailer(cfg.Email, logger)
	emailLogsRepo := emaillogs.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(smtp, emailLogsRepo, jobQueue, logger)

	voucherRepo := vouchers.NewRepository(pool)
	sweeper := worker.NewExpirySweeper(voucherRepo,
		time.Duration(cfg.Voucher.ExpirySweepMinutes)*time.Minute, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go sweeper.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
