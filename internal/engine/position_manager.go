package engine

import (
	"pivot-itm-bot/internal/types"
)

// State is the position lifecycle state.
type State string

const (
	StateIdle     State = "IDLE"
	StateEntering State = "ENTERING"
	StateOpen     State = "OPEN"
	StateExiting  State = "EXITING"
)

// positionManager holds the single open position of the day and the
// lifecycle state around it.
type positionManager struct {
	state State
	pos   *types.Position
}

func newPositionManager() *positionManager {
	return &positionManager{state: StateIdle}
}

// get returns the open position, or nil.
func (pm *positionManager) get() *types.Position {
	return pm.pos
}

func (pm *positionManager) has() bool {
	return pm.pos != nil
}

func (pm *positionManager) set(s State) {
	pm.state = s
}

// open stores p and moves to OPEN.
func (pm *positionManager) open(p types.Position) {
	pm.pos = &p
	pm.state = StateOpen
}

// updatePrice records the latest valid quote for the forced-exit fallback.
func (pm *positionManager) updatePrice(price float64) {
	if pm.pos != nil && price > 0 {
		pm.pos.LastPrice = price
	}
}

// close drops the position and returns to IDLE.
func (pm *positionManager) close() {
	pm.pos = nil
	pm.state = StateIdle
}
