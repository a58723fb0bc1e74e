// Package qr defines the textual payload printed into per-table QR
// codes. Image generation and scanning happen outside this service; the
// payload is a plain path so any scanner app lands on the client page.
package qr

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const prefix = "/client/table/"

var ErrInvalidPayload = errors.New("not a table QR payload")

// Payload returns the canonical payload for a table.
func Payload(tableID uuid.UUID) string {
	return prefix + tableID.String()
}

// Parse extracts the table ID from a scanned payload. Anything that is
// not exactly a three-segment client table path is rejected.
func Parse(payload string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(payload, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return uuid.Nil, ErrInvalidPayload
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, ErrInvalidPayload
	}
	return id, nil
}
