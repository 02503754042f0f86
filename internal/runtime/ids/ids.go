// Package ids generates the per-message deduplication keys handed to the
// queue backend.
package ids

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Format selects how deduplication keys are rendered.
type Format string

const (
	// FormatUUID produces random (version 4) UUIDs.
	FormatUUID Format = "uuid"
	// FormatULID produces monotonic ULIDs, which sort by creation time.
	FormatULID Format = "ulid"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// Generator returns a fresh key on every call. Implementations must be safe
// for concurrent use.
type Generator func() string

// NewUUID returns a random 128-bit UUID in its canonical 36-character form.
func NewUUID() string {
	return uuid.NewString()
}

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// ForFormat returns the generator for the given format. An empty format
// selects FormatUUID.
func ForFormat(f Format) (Generator, error) {
	switch f {
	case "", FormatUUID:
		return NewUUID, nil
	case FormatULID:
		return CreateULID, nil
	default:
		return nil, fmt.Errorf("unknown deduplication id format %q", string(f))
	}
}
