package core

import (
	"errors"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestIDShort tests the file-name prefix of an ID
func TestIDShort(t *testing.T) {
	if got := ID("0123456789abcdef").Short(); got != "01234567" {
		t.Errorf("Expected Short() to return '01234567', got '%s'", got)
	}
	if got := ID("abc").Short(); got != "abc" {
		t.Errorf("Expected Short() of a short ID to return it unchanged, got '%s'", got)
	}
}

// TestErrorClassification tests the sentinel helpers
func TestErrorClassification(t *testing.T) {
	if !IsNotFoundError(NewProtocolNotFoundError("12")) {
		t.Error("Expected protocol miss to be a not-found error")
	}
	if !IsNotFoundError(ErrTopicNotFound) {
		t.Error("Expected topic miss to be a not-found error")
	}

	malformed := NewMalformedLabelError("Beat Rate (bpm) Quantiles - Qx")
	if !errors.Is(malformed, ErrMalformedReference) {
		t.Error("Expected malformed label error to wrap ErrMalformedReference")
	}
	if !IsIntegrityError(malformed) {
		t.Error("Expected malformed label error to be an integrity error")
	}
	if IsIntegrityError(ErrInvalidMode) {
		t.Error("Expected invalid mode not to be an integrity error")
	}
}
