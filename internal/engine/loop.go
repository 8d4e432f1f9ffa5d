package engine

import (
	"context"
	"time"

	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
)

// RunConfig controls the sequential run loop.
type RunConfig struct {
	ErrorBackoff      time.Duration
	HeartbeatInterval time.Duration
	Sink              interfaces.Sink

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run drives eng one tick at a time until ctx is cancelled, then calls
// Shutdown once. A tick error is logged and followed by ErrorBackoff; it
// never stops the loop.
func Run(ctx context.Context, eng interfaces.Engine, rc RunConfig) {
	if rc.Now == nil {
		rc.Now = time.Now
	}
	if rc.Sleep == nil {
		rc.Sleep = sleepCtx
	}
	if rc.Sink == nil {
		rc.Sink = interfaces.NopSink{}
	}

	logger.Info(ctx, "Trading loop started")
	lastHeartbeat := rc.Now()

	for {
		if ctx.Err() != nil {
			break
		}

		if rc.HeartbeatInterval > 0 && rc.Now().Sub(lastHeartbeat) >= rc.HeartbeatInterval {
			eng.Heartbeat(ctx)
			lastHeartbeat = rc.Now()
		}

		res, err := eng.Tick(ctx)
		wait := res.Sleep
		if err != nil {
			logger.ErrorWithErr(ctx, "Unexpected error in trading loop", err)
			rc.Sink.RecordEvent("Error: " + truncate(err.Error(), 100))
			wait = rc.ErrorBackoff
		}
		if wait <= 0 {
			wait = time.Second
		}

		if err := rc.Sleep(ctx, wait); err != nil {
			break
		}
	}

	eng.Shutdown(ctx)
}
