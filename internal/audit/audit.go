package audit

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunEntry records one settlement pass: who asked for it, what it
// covered, how it ended. Entries are append-only; reruns of the same
// month append new rows rather than overwrite.
type RunEntry struct {
	ID                string
	Client            string
	PlantID           string
	Month             time.Time
	Status            string
	Error             string
	RecordCount       int
	RoundingShortfall float64
	SnapshotDigest    string
	RequestedBy       string
	Duration          time.Duration
	CreatedAt         time.Time
}

// Logger appends run entries.
type Logger interface {
	Log(ctx context.Context, entry RunEntry) error
}

// NewID generates a random run id.
func NewID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return "run-" + hex.EncodeToString(buf)
}

// DigestJSON computes a SHA256 hex digest over a serialized snapshot
// so a stored run can be checked against recomputation later.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
