package history

import (
	"encoding/json"
	"fmt"

	"SiteAuditor/internal/domain"
)

// Encode serializes the history as a JSON object keyed by country.
func Encode(data domain.HistoryByCountry) (string, error) {
	if data == nil {
		data = domain.HistoryByCountry{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}
	return string(raw), nil
}

// Decode parses a serialized history and checks that ids and urls are unique across buckets.
func Decode(raw string) (domain.HistoryByCountry, error) {
	var data domain.HistoryByCountry
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptSnapshot, err)
	}
	if data == nil {
		data = domain.HistoryByCountry{}
	}

	ids := make(map[string]struct{})
	urls := make(map[string]struct{})
	for country, bucket := range data {
		for _, rec := range bucket {
			if rec.ID == "" {
				return nil, fmt.Errorf("%w: record without id in %q", domain.ErrCorruptSnapshot, country)
			}
			if _, dup := ids[rec.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate id %s", domain.ErrCorruptSnapshot, rec.ID)
			}
			if _, dup := urls[rec.URL]; dup {
				return nil, fmt.Errorf("%w: duplicate url %s", domain.ErrCorruptSnapshot, rec.URL)
			}
			ids[rec.ID] = struct{}{}
			urls[rec.URL] = struct{}{}
		}
	}
	return data, nil
}
