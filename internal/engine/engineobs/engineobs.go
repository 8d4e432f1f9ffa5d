package engineobs

import (
	"context"
	"time"

	"pivot-itm-bot/internal/interfaces"
	"pivot-itm-bot/internal/logger"
	"pivot-itm-bot/internal/trace"
	"pivot-itm-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Tick(ctx context.Context) (types.TickResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Tick")
	defer span.End()

	start := time.Now()

	res, err := oe.engine.Tick(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trading tick failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res, err
	}

	logger.DebugSkip(ctx, 1, "Trading tick completed",
		"phase", res.Phase,
		"next_in", res.Sleep.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return res, nil
}

func (oe *observableEngine) Heartbeat(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "engine.Heartbeat")
	defer span.End()

	oe.engine.Heartbeat(ctx)
}

func (oe *observableEngine) Shutdown(ctx context.Context) {
	ctx, span := trace.StartSpan(context.WithoutCancel(ctx), "engine.Shutdown")
	defer span.End()

	start := time.Now()
	oe.engine.Shutdown(ctx)
	logger.InfoSkip(ctx, 1, "Engine shutdown completed", "duration_ms", time.Since(start).Milliseconds())
}
