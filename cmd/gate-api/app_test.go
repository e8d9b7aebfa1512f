package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/kidzo/gatesync/internal/api/admissions_api"
	"github.com/kidzo/gatesync/internal/cache/rediscache"
	"github.com/kidzo/gatesync/internal/models"
	"github.com/kidzo/gatesync/internal/notify"
	"github.com/kidzo/gatesync/internal/services/admissions"
	"github.com/kidzo/gatesync/internal/services/sessions"
)

type fakeRepo struct{}

func (fakeRepo) CreateCheckIn(ctx context.Context, in models.CheckInCreateInput) (*models.CheckIn, error) {
	return &models.CheckIn{TransactionID: "tx-1", NumberOfKids: in.NumberOfKids}, nil
}
func (fakeRepo) CodeSeen(ctx context.Context, kind models.TicketKind, code string) (bool, error) {
	return false, nil
}
func (fakeRepo) ListCheckIns(ctx context.Context, page, pageSize int) (*models.CheckInPage, error) {
	return &models.CheckInPage{TotalPages: 0, CurrentPage: 1}, nil
}
func (fakeRepo) SoftDeleteCheckIn(ctx context.Context, transactionID string) error {
	return models.ErrNotFound
}

type fakeSessionRepo struct {
	created int
}

func (f *fakeSessionRepo) CreateSession(ctx context.Context, in models.SessionStartInput) (*models.ActivitySession, error) {
	f.created++
	return &models.ActivitySession{ID: "sess-1"}, nil
}
func (f *fakeSessionRepo) GetSession(ctx context.Context, id string) (*models.ActivitySession, error) {
	return nil, models.ErrNotFound
}
func (f *fakeSessionRepo) StopSession(ctx context.Context, id string, endTime time.Time) (*models.ActivitySession, error) {
	return nil, models.ErrNotFound
}
func (f *fakeSessionRepo) UpdateSession(ctx context.Context, id string, in models.SessionUpdateInput) (*models.ActivitySession, error) {
	return nil, models.ErrNotFound
}
func (f *fakeSessionRepo) ListSessions(ctx context.Context, limit int) ([]*models.ActivitySession, error) {
	return nil, nil
}
func (f *fakeSessionRepo) AddSessionCode(ctx context.Context, sessionID, code string) (*models.SessionCode, error) {
	return nil, models.ErrNotFound
}
func (f *fakeSessionRepo) DeleteSessionCode(ctx context.Context, sessionID string, codeID uint64) error {
	return models.ErrNotFound
}
func (f *fakeSessionRepo) ListSessionCodes(ctx context.Context, sessionID string) ([]*models.SessionCode, error) {
	return nil, nil
}

type fakeConfigStore struct{}

func (fakeConfigStore) GetTerminalConfig(ctx context.Context, hostname string) (*models.TerminalConfig, error) {
	return nil, models.ErrNotFound
}
func (fakeConfigStore) UpsertTerminalConfig(ctx context.Context, hostname string, cfg json.RawMessage, publish bool) (*models.TerminalConfig, error) {
	return &models.TerminalConfig{Hostname: hostname, Config: cfg, IsPublished: publish}, nil
}

type fakeConsumer struct{}

func (fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunGateAPI_ServesHTTP(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"openapi":"3.0.0"}`), 0o600))

	mr := miniredis.RunT(t)
	ledger := rediscache.NewCounters(mr.Addr())
	hub := notify.NewHub()

	adm := admissions.New(fakeRepo{}, ledger, hub, nil, "")
	sessSvc := sessions.New(&fakeSessionRepo{})
	rec := sessions.NewReconciler(sessSvc, adm)
	api := admissions_api.New(adm, sessSvc, rec, hub, fakeConfigStore{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := gateAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		replayTopic:   "terminal.replay",
		consumerGroup: "gate-api",
		onListen:      func(addr string) { addrCh <- addr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runGateAPI(ctx, opts, api, rec, nil, fakeConsumer{})
	}()

	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = http.Get("http://" + addr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(body), "openapi")

	resp, err = http.Get("http://" + addr + "/api/counters")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(body), "totalCheckIns")

	cancel()

	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	case err := <-errCh:
		require.Error(t, err)
	}
}

func TestReplayHandler_BadMessageDoesNotStopConsumption(t *testing.T) {
	repo := &fakeSessionRepo{}
	sessSvc := sessions.New(repo)
	mr := miniredis.RunT(t)
	adm := admissions.New(fakeRepo{}, rediscache.NewCounters(mr.Addr()), nil, nil, "")
	rec := sessions.NewReconciler(sessSvc, adm)

	handler := replayHandler(context.Background(), rec)

	// garbage payload is logged and committed, not returned as an error
	require.NoError(t, handler(nil, []byte("not json")))

	batch, err := json.Marshal(map[string]any{
		"terminal_id": "gate-3",
		"actions": []map[string]any{
			{"type": "start", "payload": map[string]any{"establishment_id": "fib-001", "activity_name": "Slide"}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, handler(nil, batch))
	require.Equal(t, 1, repo.created)
}

func TestRunGateAPI_RequiresSwaggerFile(t *testing.T) {
	err := runGateAPI(context.Background(), gateAPIOpts{httpAddr: "127.0.0.1:0"}, nil, nil, nil, nil)
	require.Error(t, err)

	err = runGateAPI(context.Background(), gateAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "missing.json"),
	}, nil, nil, nil, nil)
	require.Error(t, err)
}
