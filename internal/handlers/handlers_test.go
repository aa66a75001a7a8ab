package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smartmailer/internal/action"
	"smartmailer/internal/classifier"
	"smartmailer/internal/config"
	"smartmailer/internal/metrics"
	"smartmailer/internal/model"
	"smartmailer/internal/orchestrator"
	"smartmailer/internal/retry"
	"smartmailer/internal/store"
	"smartmailer/internal/templates"
)

type stubNotifier struct {
	err  error
	sent int
}

func (n *stubNotifier) SendAlert(ctx context.Context, text string) error {
	if n.err != nil {
		return n.err
	}
	n.sent++
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store, *stubNotifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	st := store.New(db)

	cfg := &config.SchedulerConfig{IntervalMinutes: 60, BatchSize: 50, Workers: 2}
	cls := classifier.New(config.RulesConfig{})
	router := action.NewRouter(templates.NewRenderer("SmartMailer"), true)
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	orch := orchestrator.New(cfg, retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		nil, st, cls, router, nil, nil, m)

	notifier := &stubNotifier{}
	h := NewHandlers(st, orch, notifier)

	engine := gin.New()
	h.SetupRoutes(engine)
	return engine, st, notifier
}

func seedRecord(t *testing.T, st *store.Store, messageID string, status model.Status, category model.Category) {
	t.Helper()
	_, err := st.CreatePending(model.Message{
		MessageID:  messageID,
		Sender:     "sender@example.com",
		Subject:    "hello",
		ReceivedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	if status == model.StatusPending {
		return
	}
	require.NoError(t, st.UpdateStatus(messageID, model.StatusClassified, store.StatusUpdate{
		Category:    category,
		MatchedRule: "none",
	}))
	if status == model.StatusClassified {
		return
	}
	if status == model.StatusFailed {
		require.NoError(t, st.UpdateStatus(messageID, model.StatusFailed, store.StatusUpdate{LastError: "boom"}))
		return
	}
	require.NoError(t, st.UpdateStatus(messageID, model.StatusActionDispatched, store.StatusUpdate{}))
	if status == model.StatusCompleted {
		require.NoError(t, st.UpdateStatus(messageID, model.StatusCompleted, store.StatusUpdate{
			ActionTaken: model.ActionAutoReplySent,
			Attempts:    1,
		}))
	}
}

func TestHealthCheck(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp model.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Database)
	assert.Equal(t, "stopped", resp.Scheduler["status"])
}

func TestGetRecords(t *testing.T) {
	engine, st, _ := newTestRouter(t)
	seedRecord(t, st, "msg-1", model.StatusCompleted, model.CategoryNormal)
	seedRecord(t, st, "msg-2", model.StatusFailed, model.CategoryNormal)
	seedRecord(t, st, "msg-3", model.StatusPending, "")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var records []model.RecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 3)

	// Status filter narrows the result set.
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records?status=failed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "msg-2", records[0].MessageID)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 2)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records?since=not-a-time", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRecordByID(t *testing.T) {
	engine, st, _ := newTestRouter(t)
	seedRecord(t, st, "msg-1", model.StatusCompleted, model.CategoryNormal)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/msg-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.RecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "msg-1", resp.MessageID)
	assert.Equal(t, "sender@example.com", resp.Sender)
	assert.Equal(t, model.StatusCompleted, resp.Status)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats(t *testing.T) {
	engine, st, _ := newTestRouter(t)
	seedRecord(t, st, "msg-1", model.StatusCompleted, model.CategoryNormal)
	seedRecord(t, st, "msg-2", model.StatusFailed, model.CategoryNormal)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats model.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalMessages)
	assert.Equal(t, int64(1), stats.AutoRepliesSent)
	assert.Equal(t, int64(1), stats.FailedMessages)
}

func TestSchedulerStatusStopped(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/scheduler/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "stopped", resp["status"])
}

func TestRunOnceWhenStopped(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	// The scheduler was never started; a manual trigger must not
	// pretend a cycle ran.
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/scheduler/run-once", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "not running")
}

func TestTestNotification(t *testing.T) {
	engine, _, notifier := newTestRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/notifications/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, notifier.sent)

	notifier.err = errors.New("chat not found")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/notifications/test", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestCleanup(t *testing.T) {
	engine, st, _ := newTestRouter(t)
	seedRecord(t, st, "msg-1", model.StatusCompleted, model.CategoryNormal)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/cleanup?days=7", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(7), resp["days"])
	assert.Equal(t, float64(0), resp["deleted"])

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/maintenance/cleanup?days=zero", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
