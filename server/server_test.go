package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rustyeddy/tradekeeper/broker/paper"
	"github.com/rustyeddy/tradekeeper/cycle"
	"github.com/rustyeddy/tradekeeper/filter"
	"github.com/rustyeddy/tradekeeper/gate"
	"github.com/rustyeddy/tradekeeper/internal/metrics"
	"github.com/rustyeddy/tradekeeper/journal"
	"github.com/rustyeddy/tradekeeper/lifecycle"
	"github.com/rustyeddy/tradekeeper/notify"
	"github.com/rustyeddy/tradekeeper/risk"
	"github.com/rustyeddy/tradekeeper/session"
	"github.com/rustyeddy/tradekeeper/store"
	"github.com/rustyeddy/tradekeeper/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type holdAnalyst struct{}

func (holdAnalyst) Analyze(_ context.Context, req cycle.Request) (lifecycle.Decision, error) {
	return lifecycle.Decision{Decision: lifecycle.NoTrade, Symbol: req.Symbol, Reason: "chop"}, nil
}

type passFilter struct{}

func (passFilter) Check(context.Context, string, bool) (filter.Result, error) {
	return filter.Result{Pass: true}, nil
}

type testAPI struct {
	router *gin.Engine
	store  *store.Store
	broker *paper.Engine
	notes  *notify.Recorder
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	dir := t.TempDir()
	log := zap.NewNop()

	st, err := store.Open(filepath.Join(dir, "trades"))
	require.NoError(t, err)
	ledger, err := journal.NewCSV(filepath.Join(dir, "ledger.csv"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	sess, err := session.NewGate("00:00-00:00", time.UTC)
	require.NoError(t, err)
	pause := gate.NewPauseFlag(filepath.Join(dir, "bot_status.json"))
	breaker := risk.NewBreaker(filepath.Join(dir, "breaker.json"), 3, time.UTC)
	pb := paper.NewEngine(100, time.UTC)
	pb.SetPrice(paper.Tick{Symbol: "XAUUSD", Bid: 1999.5, Ask: 2000})
	notes := &notify.Recorder{}

	arch := lifecycle.NewArchiver(st, ledger, breaker, log, m)
	eng := lifecycle.NewEngine(pb, st, arch, notes, lifecycle.EngineConfig{Supported: []string{"XAUUSD"}, DefaultVolume: 0.01}, log, m)
	rec := lifecycle.NewReconciler(pb, st, arch, notes, log, m)
	g := gate.New(pause, breaker, sess, passFilter{}, gate.WithMetrics(m))
	runner := cycle.NewRunner(g, st, holdAnalyst{}, eng, notes, []string{"XAUUSD"}, log)

	h := NewHandler(Deps{
		Store:      st,
		Breaker:    breaker,
		Pause:      pause,
		Session:    sess,
		Recipients: notify.NewRecipientList(filepath.Join(dir, "recipients.json")),
		Broker:     pb,
		Engine:     eng,
		Reconciler: rec,
		Runner:     runner,
		Notifier:   notes,
		Gatherer:   reg,
		Symbols:    []string{"XAUUSD"},
		Log:        log,
	})
	return &testAPI{router: h.Router(), store: st, broker: pb, notes: notes}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp Response
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	w, _ := api.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestPauseResumeStatus(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(t, http.MethodPost, "/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := api.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["paused"])
	assert.Equal(t, "ARMED", data["breaker"])
	assert.Equal(t, true, data["in_session"])

	w, _ = api.do(t, http.MethodPost, "/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, resp = api.do(t, http.MethodGet, "/status", nil)
	assert.Equal(t, false, resp.Data.(map[string]any)["paused"])
	assert.Len(t, api.notes.Messages(), 2)
}

func TestRecipients(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(t, http.MethodPost, "/recipients", map[string]string{"id": "ops"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, http.MethodPost, "/recipients", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, resp := api.do(t, http.MethodGet, "/recipients", nil)
	assert.Equal(t, []any{"ops"}, resp.Data)

	w, _ = api.do(t, http.MethodDelete, "/recipients/ops", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = api.do(t, http.MethodDelete, "/recipients/ops", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDecisionAndReconcile(t *testing.T) {
	api := newTestAPI(t)

	w, resp := api.do(t, http.MethodPost, "/decisions", map[string]any{
		"decision": "OPEN", "symbol": "XAUUSD", "type": "MARKET_BUY", "sl": 1990, "tp": 2010,
	})
	require.Equal(t, http.StatusOK, w.Code, resp.Message)

	w, _ = api.do(t, http.MethodPost, "/decisions", map[string]any{
		"decision": "OPEN", "symbol": "XAUUSD", "type": "MARKET_BUY", "sl": 1990,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = api.do(t, http.MethodPost, "/decisions", map[string]any{"decision": "OPEN", "symbol": "XAUUSD"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	api.broker.SetPrice(paper.Tick{Symbol: "XAUUSD", Bid: 2010, Ask: 2010.5})

	w, resp = api.do(t, http.MethodPost, "/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	closed := resp.Data.(map[string]any)["closed"].([]any)
	assert.Len(t, closed, 1)

	rec, err := api.store.Get("XAUUSD")
	require.NoError(t, err)
	assert.Nil(t, rec)

	w, resp = api.do(t, http.MethodGet, "/profit/today", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 10.0, resp.Data.(map[string]any)["profit"], 1e-9)
}

func TestAnalyze(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(t, http.MethodPost, "/analyze/btcusd", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp := api.do(t, http.MethodPost, "/analyze/xauusd", nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Message)
	texts := api.notes.Texts()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[len(texts)-1], "NO TRADE XAUUSD: chop")
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.do(t, http.MethodPost, "/reconcile", nil)

	w, _ := api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tk_reconcile_runs_total")
}

func TestStatusListsTrades(t *testing.T) {
	api := newTestAPI(t)
	require.NoError(t, api.store.Create(trade.Record{Ticket: 5, Symbol: "XAUUSD", Type: trade.BuyLimit, Status: trade.Pending}))

	_, resp := api.do(t, http.MethodGet, "/status", nil)
	pending := resp.Data.(map[string]any)["pending"].([]any)
	assert.Len(t, pending, 1)
}
