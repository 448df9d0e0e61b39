package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when url or email is missing on submission.
	ErrValidation = errors.New("url and email are required")
	// ErrDuplicateURL is returned when the url was already analyzed in any country.
	ErrDuplicateURL = errors.New("url was already analyzed")
	// ErrNotificationFailed wraps a failed call to the notification service.
	ErrNotificationFailed = errors.New("notification failed")
	// ErrCorruptSnapshot marks a persisted history that cannot be loaded.
	ErrCorruptSnapshot = errors.New("history snapshot is corrupt")
	// ErrNoSelection is returned by manual escalation when nothing is selected.
	ErrNoSelection = errors.New("no record selected")
	// ErrAlreadyNotified is returned by manual escalation on an EMAIL_SENT record.
	ErrAlreadyNotified = errors.New("record was already notified")
	// ErrRecordNotFound is returned when an id is not present in the history.
	ErrRecordNotFound = errors.New("record not found")
	// ErrImmutableField is returned when a replacement changes a fixed field.
	ErrImmutableField = errors.New("immutable field changed")
	// ErrStatusRegression is returned when a replacement moves status backward.
	ErrStatusRegression = errors.New("status cannot move backward")
)

func immutableField(id, field string) error {
	return fmt.Errorf("record %s: %w: %s", id, ErrImmutableField, field)
}

func statusRegression(id string, from, to Status) error {
	return fmt.Errorf("record %s: %w: %s -> %s", id, ErrStatusRegression, from, to)
}
