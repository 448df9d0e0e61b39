package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// localeLayouts are the Date.toLocaleString renderings found in dashboard snapshots.
var localeLayouts = []string{
	"1/2/2006, 3:04:05 PM",
	"02/01/2006, 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp is a record date. Values that do not parse are kept verbatim so a snapshot
// written by another client survives a load and persist cycle unchanged.
type Timestamp struct {
	t   time.Time
	raw string
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t: t}
}

// Time returns the parsed instant; zero when the source text was not recognised.
func (ts Timestamp) Time() time.Time { return ts.t }

func (ts Timestamp) IsZero() bool { return ts.t.IsZero() && ts.raw == "" }

// Equal compares instants when both parsed, the source text otherwise.
func (ts Timestamp) Equal(other Timestamp) bool {
	if !ts.t.IsZero() && !other.t.IsZero() {
		return ts.t.Equal(other.t)
	}
	return ts.raw == other.raw && ts.t.Equal(other.t)
}

// String renders RFC 3339 for parsed values and the source text otherwise.
func (ts Timestamp) String() string {
	if ts.raw != "" {
		return ts.raw
	}
	return ts.t.Format(time.RFC3339)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.raw != "" {
		return json.Marshal(ts.raw)
	}
	return ts.t.MarshalJSON()
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ts = Timestamp{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*ts = Timestamp{t: t}
		return nil
	}
	for _, layout := range localeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			*ts = Timestamp{t: t, raw: s}
			return nil
		}
	}
	*ts = Timestamp{raw: s}
	return nil
}
