package interfaces

import (
	"context"

	"pivot-itm-bot/internal/types"
)

// Engine is the day orchestrator driven by the run loop. Calls are never concurrent.
type Engine interface {
	Tick(ctx context.Context) (types.TickResult, error)
	Heartbeat(ctx context.Context)
	// Shutdown runs once after the loop stops. ctx may already be cancelled.
	Shutdown(ctx context.Context)
}
