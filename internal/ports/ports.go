package ports

import (
	"context"
	"time"

	"SiteAuditor/internal/domain"
)

// Analyzer asks the remote analysis service to inspect a URL.
type Analyzer interface {
	Analyze(ctx context.Context, url string) (domain.AnalysisResult, error)
}

// Notifier asks the remote service to send the contact email for a record.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// KeyValueStore is the host persistence collaborator holding whole snapshots under a key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Narrator renders workflow progress lines in enqueue order.
type Narrator interface {
	Enqueue(line string)
	Start()
	Reset()
	Replace(lines []string)
}

// Metrics records workflow outcomes (Prometheus or no-op).
type Metrics interface {
	RecordSubmission(priority domain.Priority)
	RecordRejection(reason string)
	RecordAnalysisDegraded()
	RecordAnalysisLatency(d time.Duration)
	RecordNotification(mode, result string)
	RecordNarrationLine()
}
