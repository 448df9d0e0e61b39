package domain

// Priority is the coarse urgency tier derived from analysis log text.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Status enumerates notification milestones of a record.
type Status string

const (
	StatusAnalyzed  Status = "ANALYZED"
	StatusEmailSent Status = "EMAIL_SENT"
)

// UnknownCountry is the bucket used when the analysis service omits a country.
const UnknownCountry = "Unknown"

// AnalysisRecord is one completed submission with its classification and notification status.
type AnalysisRecord struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Email     string    `json:"email"`
	Country   string    `json:"country"`
	CreatedAt Timestamp `json:"date"`
	Logs      []string  `json:"logs"`
	Status    Status    `json:"status"`
	Priority  Priority  `json:"priority"`
}

// Clone returns a copy that shares no slices with r.
func (r AnalysisRecord) Clone() AnalysisRecord {
	if r.Logs != nil {
		r.Logs = append([]string(nil), r.Logs...)
	}
	return r
}

// WithStatus returns a copy of r carrying the given status.
func (r AnalysisRecord) WithStatus(status Status) AnalysisRecord {
	out := r.Clone()
	out.Status = status
	return out
}

// CanReplace reports whether r is a legal in-place replacement for prev.
// Only Status may change, and only forward.
func (r AnalysisRecord) CanReplace(prev AnalysisRecord) error {
	switch {
	case r.URL != prev.URL:
		return immutableField(r.ID, "url")
	case r.Email != prev.Email:
		return immutableField(r.ID, "email")
	case r.Country != prev.Country:
		return immutableField(r.ID, "country")
	case r.Priority != prev.Priority:
		return immutableField(r.ID, "priority")
	case !r.CreatedAt.Equal(prev.CreatedAt):
		return immutableField(r.ID, "date")
	}
	if prev.Status == StatusEmailSent && r.Status != StatusEmailSent {
		return statusRegression(r.ID, prev.Status, r.Status)
	}
	return nil
}

// HistoryByCountry maps a country name to its records, newest first.
type HistoryByCountry map[string][]AnalysisRecord

// AnalysisResult is what the remote analysis service reported for a URL.
type AnalysisResult struct {
	Country string
	Logs    []string
}

// Notification is the payload handed to the notification service.
type Notification struct {
	To      string `json:"to"`
	URL     string `json:"url"`
	Country string `json:"country"`
}

// NotificationFor builds the notification payload for a record.
func NotificationFor(r AnalysisRecord) Notification {
	return Notification{To: r.Email, URL: r.URL, Country: r.Country}
}
