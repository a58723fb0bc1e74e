package qr

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestPayloadRoundTrip(t *testing.T) {
	tableID := uuid.New()
	payload := Payload(tableID)

	got, err := Parse(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != tableID {
		t.Errorf("expected %s, got %s", tableID, got)
	}
}

func TestParseRejectsForeignPayloads(t *testing.T) {
	cases := []string{
		"",
		"/client/table/",
		"/client/table/not-a-uuid",
		"/client/table/" + uuid.New().String() + "/extra",
		"/admin/table/" + uuid.New().String(),
		"https://example.com/client/table/" + uuid.New().String(),
		uuid.New().String(),
	}
	for _, payload := range cases {
		if _, err := Parse(payload); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("%q: expected ErrInvalidPayload, got: %v", payload, err)
		}
	}
}
