package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarquote/solarquote/internal/accounts"
	jobmetrics "github.com/solarquote/solarquote/internal/jobs"
	"github.com/solarquote/solarquote/internal/platform/mail"
	"github.com/solarquote/solarquote/internal/sales/quotations"
)

type mailerStub struct {
	sent []mail.Message
	err  error
}

func (m *mailerStub) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type accountsStub map[string]*accounts.Account

func (s accountsStub) Get(_ context.Context, id string) (*accounts.Account, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, accounts.ErrNotFound
}

type counterStub struct {
	status quotations.QuotationStatus
	count  int
}

func (c *counterStub) CountPastValidity(_ context.Context, status quotations.QuotationStatus) (int, error) {
	c.status = status
	return c.count, nil
}

type cleanerStub struct {
	olderThan time.Duration
	err       error
}

func (c *cleanerStub) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	c.olderThan = olderThan
	return 4, c.err
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name && len(family.GetMetric()) > 0 {
			return family.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestSendEmailJob(t *testing.T) {
	mailer := &mailerStub{}
	job := NewSendEmailJob(mailer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewSendEmailTask(SendEmailPayload{To: "dealer@example.com", Subject: "Reset", Body: "link"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "dealer@example.com", mailer.sent[0].To)

	noRecipient, err := NewSendEmailTask(SendEmailPayload{Subject: "x"})
	require.NoError(t, err)
	err = job.Handle(context.Background(), noRecipient)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	mailer.err = errors.New("relay down")
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestVisitNotifyJobEmailsDealer(t *testing.T) {
	mailer := &mailerStub{}
	directory := accountsStub{
		"dealer-1": {ID: "dealer-1", Dealer: &accounts.DealerProfile{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com"}},
		"dealer-2": {ID: "dealer-2", Dealer: &accounts.DealerProfile{FirstName: "No", LastName: "Mail"}},
	}
	job := NewVisitNotifyJob(directory, mailer, nil, nil)

	task, err := NewVisitNotifyTask(VisitNotifyPayload{
		VisitID:     "visit-1",
		QuotationID: "QT-1001",
		DealerID:    "dealer-1",
		Status:      "completed",
		At:          time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "asha@example.com", mailer.sent[0].To)
	assert.Equal(t, "Site visit for QT-1001 is completed", mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].Body, "Hello Asha Rao")
	assert.Contains(t, mailer.sent[0].Body, "2026-03-02 10:30")

	silent, err := NewVisitNotifyTask(VisitNotifyPayload{VisitID: "visit-2", DealerID: "dealer-2", Status: "approved"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), silent))
	assert.Len(t, mailer.sent, 1)

	missing, err := NewVisitNotifyTask(VisitNotifyPayload{VisitID: "visit-3", DealerID: "ghost"})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), missing), accounts.ErrNotFound)
}

func TestValidityReportJobPublishesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := &counterStub{count: 7}
	job := NewValidityReportJob(counter, nil, jobmetrics.NewMetrics(reg))

	task, err := NewValidityReportTask("")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, quotations.QuotationStatusPending, counter.status)
	assert.Equal(t, float64(7), gaugeValue(t, reg, "solarquote_quotations_past_validity"))

	bad, err := NewValidityReportTask("archived")
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &cleanerStub{}
	job := NewIdempotencyCleanupJob(cleaner, nil, nil)

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, cleaner.olderThan)

	zero := asynq.NewTask(TaskTypeIdempotencyCleanup, []byte(`{}`))
	require.NoError(t, job.Handle(context.Background(), zero))
	assert.Equal(t, 24*time.Hour, cleaner.olderThan)

	cleaner.err = errors.New("db gone")
	assert.Error(t, job.Handle(context.Background(), task))
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (e *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "1", Type: task.Type(), Queue: QueueDefault}, nil
}

func (e *recordingEnqueuer) Close() error { return nil }

func TestClientEnqueuesTypedTasks(t *testing.T) {
	enq := &recordingEnqueuer{}
	client := &Client{client: enq}

	_, err := client.EnqueueSendEmail(context.Background(), SendEmailPayload{To: "a@example.com"})
	require.NoError(t, err)
	_, err = client.EnqueueVisitNotify(context.Background(), VisitNotifyPayload{VisitID: "v-1"})
	require.NoError(t, err)

	require.Len(t, enq.tasks, 2)
	assert.Equal(t, TaskTypeSendEmail, enq.tasks[0].Type())
	assert.Equal(t, TaskTypeVisitNotify, enq.tasks[1].Type())

	var payload VisitNotifyPayload
	require.NoError(t, json.Unmarshal(enq.tasks[1].Payload(), &payload))
	assert.Equal(t, "v-1", payload.VisitID)
}

type inspectorStub struct {
	info *asynq.QueueInfo
	err  error
}

func (s inspectorStub) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthHandler(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		h.MountRoutes(r)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rec
	}

	rec := serve(NewHandler(inspectorStub{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 2, Failed: 1}}, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool        `json:"success"`
		Data    queueHealth `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Data.Pending)
	assert.Equal(t, 1, body.Data.Failed)

	rec = serve(NewHandler(inspectorStub{err: errors.New("redis down")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServeMuxSkipsIncompleteHandlers(t *testing.T) {
	called := false
	mux := newServeMux([]TaskHandler{
		{Type: TaskTypeSendEmail, Handler: func(context.Context, *asynq.Task) error { called = true; return nil }},
		{Type: "", Handler: func(context.Context, *asynq.Task) error { return nil }},
		{Type: TaskTypeVisitNotify},
	})
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskTypeSendEmail, nil)))
	assert.True(t, called)
	assert.Error(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskTypeVisitNotify, nil)))
}
