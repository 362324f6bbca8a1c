package api

import (
	"context"
	"time"

	"github.com/radio-control/radiowake/internal/history"
	"github.com/radio-control/radiowake/internal/radio"
	"github.com/radio-control/radiowake/internal/wake"
)

// RadioPort is what the API needs from the radio manager.
type RadioPort interface {
	List() *radio.RadioList
	Get(radioID string) (radio.Radio, error)
	SetActive(radioID string) error
	Wake(ctx context.Context, radioID string, timeout time.Duration) (wake.Attempt, error)
	WakeAll(ctx context.Context, timeout time.Duration) []radio.Outcome
}

// HistoryPort is what the API needs from the attempt store.
type HistoryPort interface {
	List(ctx context.Context, q history.Query) ([]history.Record, error)
}

var (
	_ RadioPort   = (*radio.Manager)(nil)
	_ HistoryPort = (*history.Store)(nil)
)
