package domain

import (
	"time"

	"github.com/google/uuid"
)

type SwapStatus string

const (
	SwapStatusCompleted SwapStatus = "completed"
	SwapStatusFailed    SwapStatus = "failed"
)

// SwapRequest points at the two ingested images of one swap.
type SwapRequest struct {
	SourcePath string
	TargetPath string
	RequestID  string
	ClientIP   string
}

// SwapResult is the encoded output of a successful swap.
type SwapResult struct {
	ID          uuid.UUID
	Image       []byte
	Width       int
	Height      int
	SourceFaces int
	TargetFaces int
	Latency     time.Duration
}

// SwapJob is the audit record of one swap attempt.
type SwapJob struct {
	ID          uuid.UUID  `json:"id"`
	RequestID   string     `json:"request_id,omitempty"`
	Status      SwapStatus `json:"status"`
	ErrorCode   string     `json:"error_code,omitempty"`
	Provider    string     `json:"provider"`
	SourceFaces int        `json:"source_faces"`
	TargetFaces int        `json:"target_faces"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	LatencyMs   int64      `json:"latency_ms"`
	ClientIP    string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
}
