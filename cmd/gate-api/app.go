package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/kidzo/gatesync/internal/api/admissions_api"
	"github.com/kidzo/gatesync/internal/broker/messages"
	"github.com/kidzo/gatesync/internal/services/resetter"
	"github.com/kidzo/gatesync/internal/services/sessions"
)

type gateAPIOpts struct {
	httpAddr    string
	swaggerPath string

	replayTopic   string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

// replayHandler feeds replay-topic messages into the reconciler. Undecodable
// messages are logged and committed, never returned as errors: one bad
// message must not stop consumption of later batches.
func replayHandler(ctx context.Context, rec *sessions.Reconciler) func(key, value []byte) error {
	return func(_key, value []byte) error {
		var batch messages.ReplayBatch
		if err := json.Unmarshal(value, &batch); err != nil {
			slog.Error("skip undecodable replay message", "error", err.Error())
			return nil
		}
		res := rec.Replay(ctx, batch)
		slog.Info("replay batch processed",
			"terminal_id", batch.TerminalID, "applied", res.Applied, "skipped", res.Skipped)
		return nil
	}
}

func runGateAPI(ctx context.Context, opts gateAPIOpts, api *admissions_api.API, rec *sessions.Reconciler, rs *resetter.Resetter, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	r.Mount("/api", api.Routes())

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.replayTopic, "group", opts.consumerGroup)
			if err := consumer.Consume(ctx, replayHandler(ctx, rec)); err != nil && err != context.Canceled {
				slog.Error("replay consumer stopped", "topic", opts.replayTopic, "error", err.Error())
			}
		}()
	}

	if rs != nil {
		go func() {
			_ = rs.Run(ctx)
		}()
	}

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
