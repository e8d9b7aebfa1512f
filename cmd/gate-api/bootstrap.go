package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kidzo/gatesync/config"
	"github.com/kidzo/gatesync/internal/api/admissions_api"
	"github.com/kidzo/gatesync/internal/broker/kafka"
	"github.com/kidzo/gatesync/internal/cache/rediscache"
	"github.com/kidzo/gatesync/internal/notify"
	"github.com/kidzo/gatesync/internal/services/admissions"
	"github.com/kidzo/gatesync/internal/services/resetter"
	"github.com/kidzo/gatesync/internal/services/sessions"
	"github.com/kidzo/gatesync/internal/storage/pgadmission"
)

type gateAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     gateAPIOpts
	api      *admissions_api.API
	rec      *sessions.Reconciler
	resetter *resetter.Resetter
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapGateAPI() *gateAPIApp {
	_ = godotenv.Load()

	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	httpAddr := cfg.GateSync.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.GateSync.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "gate-api"
	}
	committedTopic := cfg.Kafka.CheckInCommittedTopicName
	if committedTopic == "" {
		committedTopic = "checkin.committed"
	}
	replayTopic := cfg.Kafka.TerminalReplayTopicName
	if replayTopic == "" {
		replayTopic = "terminal.replay"
	}
	resetTimes := cfg.GateSync.ResetTimes
	if len(resetTimes) == 0 {
		resetTimes = []string{"00:00"}
	}

	loc := time.Local
	if cfg.GateSync.Timezone != "" {
		loc, err = time.LoadLocation(cfg.GateSync.Timezone)
		if err != nil {
			panic(fmt.Sprintf("bad timezone %q: %v", cfg.GateSync.Timezone, err))
		}
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	ledger := rediscache.NewCounters(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, replayTopic, consumerGroup)

	hub := notify.NewHub()
	adm := admissions.New(st, ledger, hub, producer, committedTopic)
	sessSvc := sessions.New(st)
	rec := sessions.NewReconciler(sessSvc, adm)

	rs, err := resetter.New(adm, resetTimes, loc)
	if err != nil {
		panic(fmt.Sprintf("bad reset_times: %v", err))
	}

	api := admissions_api.New(adm, sessSvc, rec, hub, st).
		WithRateLimit(rl, int64(cfg.GateSync.SubmitRateLimitPerMinute)).
		WithAPIKey(cfg.GateSync.APIKey)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &gateAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: gateAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			replayTopic:   replayTopic,
			consumerGroup: consumerGroup,
		},
		api:      api,
		rec:      rec,
		resetter: rs,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgadmission.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgadmission.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *gateAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *gateAPIApp) Run() error {
	return runGateAPI(a.ctx, a.opts, a.api, a.rec, a.resetter, a.consumer)
}
