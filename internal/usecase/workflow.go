package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"SiteAuditor/internal/classifier"
	"SiteAuditor/internal/domain"
	"SiteAuditor/internal/history"
	"SiteAuditor/internal/ports"
)

// Narration lines produced by the workflow itself.
const (
	LineBanner         = ">> starting analysis..."
	LineBackendOffline = "backend offline"
	LineHighDetected   = "priority HIGH detected"
	LineSendingAuto    = "sending email automatically..."
	LineSentAuto       = "email sent automatically"
	LineAutoFailed     = "auto email failed"

	locationFormat = "location detected: %s"
)

// Notification modes reported to metrics.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Stage names a step of a submission.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageSubmitting Stage = "submitting"
	StageClassified Stage = "classified"
	StageEscalating Stage = "escalating"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// WorkflowDeps wires the driven adapters into the workflow.
type WorkflowDeps struct {
	Analyzer ports.Analyzer
	Notifier ports.Notifier
	Store    *history.Store
	Narrator ports.Narrator
	Metrics  ports.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
	NewID    func() string
}

// SubmitRequest is the operator input for a new analysis.
type SubmitRequest struct {
	URL   string
	Email string
}

// Workflow runs submissions: analyze, classify, store, narrate and escalate HIGH results.
type Workflow struct {
	analyzer ports.Analyzer
	notifier ports.Notifier
	store    *history.Store
	narrator ports.Narrator
	metrics  ports.Metrics
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	selected *domain.AnalysisRecord
}

// NewWorkflow constructs the orchestrator. Store, Analyzer and Notifier are required.
func NewWorkflow(deps WorkflowDeps) *Workflow {
	w := &Workflow{
		analyzer: deps.Analyzer,
		notifier: deps.Notifier,
		store:    deps.Store,
		narrator: deps.Narrator,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      deps.Now,
		newID:    deps.NewID,
	}
	if w.narrator == nil {
		w.narrator = silentNarrator{}
	}
	if w.metrics == nil {
		w.metrics = noopMetrics{}
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.newID == nil {
		w.newID = func() string { return uuid.NewString() }
	}
	return w
}

// Submit validates the input, analyzes the url and records the result. Remote failures are
// absorbed into narration; only validation, duplicate and persistence errors are returned.
func (w *Workflow) Submit(ctx context.Context, req SubmitRequest) (domain.AnalysisRecord, error) {
	url := strings.TrimSpace(req.URL)
	email := strings.TrimSpace(req.Email)

	if url == "" || email == "" {
		w.metrics.RecordRejection("validation")
		return domain.AnalysisRecord{}, domain.ErrValidation
	}
	if w.store.Exists(url) {
		w.metrics.RecordRejection("duplicate")
		return domain.AnalysisRecord{}, fmt.Errorf("%w: %s", domain.ErrDuplicateURL, url)
	}

	log := w.logger.With("url", url)
	w.stage(log, StageSubmitting)

	w.narrator.Reset()
	w.narrate(LineBanner)

	country, logs := w.analyze(ctx, log, url)
	priority := classifier.Classify(logs)

	record := domain.AnalysisRecord{
		ID:        w.newID(),
		URL:       url,
		Email:     email,
		Country:   country,
		CreatedAt: domain.NewTimestamp(w.now()),
		Logs:      logs,
		Status:    domain.StatusAnalyzed,
		Priority:  priority,
	}
	if err := w.store.Upsert(ctx, record); err != nil {
		w.stage(log, StageFailed, "error", err)
		return domain.AnalysisRecord{}, fmt.Errorf("store record: %w", err)
	}

	log = log.With("record_id", record.ID)
	w.choose(record)
	w.metrics.RecordSubmission(priority)
	w.stage(log, StageClassified, "country", country, "priority", priority)

	var err error
	if priority == domain.PriorityHigh {
		record, err = w.escalate(ctx, log, record)
	}

	w.narrator.Start()
	if err != nil {
		return record, err
	}
	w.stage(log, StageDone, "status", record.Status)
	return record, nil
}

// SendEmail notifies the contact of the selected record and marks it EMAIL_SENT.
// Failures are returned to the caller and leave the status unchanged.
func (w *Workflow) SendEmail(ctx context.Context) (domain.AnalysisRecord, error) {
	w.mu.Lock()
	sel := w.selected
	w.mu.Unlock()

	if sel == nil {
		return domain.AnalysisRecord{}, domain.ErrNoSelection
	}

	current := *sel
	if stored, ok := w.store.Find(sel.ID); ok {
		current = stored
	}
	if current.Status != domain.StatusAnalyzed {
		return current, fmt.Errorf("%w: %s", domain.ErrAlreadyNotified, current.ID)
	}

	log := w.logger.With("url", current.URL, "record_id", current.ID)
	if err := w.notifier.Notify(ctx, domain.NotificationFor(current)); err != nil {
		w.metrics.RecordNotification(ModeManual, "failure")
		log.Warn("manual email failed", "error", err)
		return current, fmt.Errorf("%w: %w", domain.ErrNotificationFailed, err)
	}
	w.metrics.RecordNotification(ModeManual, "success")

	sent := current.WithStatus(domain.StatusEmailSent)
	if err := w.store.Upsert(ctx, sent); err != nil {
		return current, fmt.Errorf("store record: %w", err)
	}
	w.refresh(sent)
	log.Info("manual email sent")
	return sent, nil
}

// Select makes a stored record the current selection and shows its logs as narration.
func (w *Workflow) Select(id string) (domain.AnalysisRecord, error) {
	rec, ok := w.store.Find(id)
	if !ok {
		return domain.AnalysisRecord{}, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
	}
	w.choose(rec)
	w.narrator.Replace(rec.Logs)
	return rec, nil
}

// Selected returns the current selection.
func (w *Workflow) Selected() (domain.AnalysisRecord, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selected == nil {
		return domain.AnalysisRecord{}, false
	}
	return w.selected.Clone(), true
}

func (w *Workflow) analyze(ctx context.Context, log *slog.Logger, url string) (string, []string) {
	start := time.Now()
	result, err := w.analyzer.Analyze(ctx, url)
	w.metrics.RecordAnalysisLatency(time.Since(start))

	if err != nil {
		w.metrics.RecordAnalysisDegraded()
		w.stage(log, StageFailed, "step", "analyze", "error", err)
		w.narrate(LineBackendOffline)
		return domain.UnknownCountry, []string{LineBackendOffline}
	}

	country := domain.UnknownCountry
	logs := make([]string, 0, len(result.Logs)+1)
	if c := strings.TrimSpace(result.Country); c != "" {
		country = c
		line := fmt.Sprintf(locationFormat, country)
		logs = append(logs, line)
		w.narrate(line)
	}
	for _, line := range result.Logs {
		logs = append(logs, line)
		w.narrate(line)
	}
	return country, logs
}

// escalate sends the automatic email. A notifier failure is narrated and absorbed.
func (w *Workflow) escalate(ctx context.Context, log *slog.Logger, record domain.AnalysisRecord) (domain.AnalysisRecord, error) {
	w.stage(log, StageEscalating)
	w.narrate(LineHighDetected)
	w.narrate(LineSendingAuto)

	if err := w.notifier.Notify(ctx, domain.NotificationFor(record)); err != nil {
		w.metrics.RecordNotification(ModeAuto, "failure")
		w.stage(log, StageFailed, "step", "notify", "error", err)
		w.narrate(LineAutoFailed)
		return record, nil
	}
	w.metrics.RecordNotification(ModeAuto, "success")
	w.narrate(LineSentAuto)

	sent := record.WithStatus(domain.StatusEmailSent)
	if err := w.store.Upsert(ctx, sent); err != nil {
		w.stage(log, StageFailed, "step", "store", "error", err)
		return record, fmt.Errorf("store record: %w", err)
	}
	w.refresh(sent)
	return sent, nil
}

func (w *Workflow) narrate(line string) {
	w.narrator.Enqueue(line)
	w.metrics.RecordNarrationLine()
	w.narrator.Start()
}

func (w *Workflow) choose(rec domain.AnalysisRecord) {
	rec = rec.Clone()
	w.mu.Lock()
	w.selected = &rec
	w.mu.Unlock()
}

// refresh updates the selection only if it still points at rec.
func (w *Workflow) refresh(rec domain.AnalysisRecord) {
	rec = rec.Clone()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selected != nil && w.selected.ID == rec.ID {
		w.selected = &rec
	}
}

func (w *Workflow) stage(log *slog.Logger, stage Stage, args ...any) {
	level := slog.LevelInfo
	if stage == StageFailed {
		level = slog.LevelWarn
	}
	log.Log(context.Background(), level, "submission stage", append([]any{"stage", stage}, args...)...)
}

type silentNarrator struct{}

func (silentNarrator) Enqueue(string)   {}
func (silentNarrator) Start()           {}
func (silentNarrator) Reset()           {}
func (silentNarrator) Replace([]string) {}

type noopMetrics struct{}

func (noopMetrics) RecordSubmission(domain.Priority)    {}
func (noopMetrics) RecordRejection(string)              {}
func (noopMetrics) RecordAnalysisDegraded()             {}
func (noopMetrics) RecordAnalysisLatency(time.Duration) {}
func (noopMetrics) RecordNotification(string, string)   {}
func (noopMetrics) RecordNarrationLine()                {}
