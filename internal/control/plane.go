// Package control holds the cooperative cancellation flag shared between a
// running workflow loop and the callers that poll or cancel it.
package control

import (
	"sync/atomic"

	"github.com/visualix/visualix/internal/core"
)

// State is the tri-state value of a Plane.
type State int32

const (
	Running State = iota
	CancelRequested
	Terminal
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case CancelRequested:
		return "cancel_requested"
	case Terminal:
		return "terminal"
	}
	return "unknown"
}

// Plane is a lock-free run flag. Transitions are
// Running -> CancelRequested -> Terminal and Running -> Terminal; Terminal
// is absorbing.
type Plane struct {
	state atomic.Int32
}

// New returns a plane in the Running state.
func New() *Plane {
	return &Plane{}
}

// State returns the current state.
func (cp *Plane) State() State {
	return State(cp.state.Load())
}

// Cancel requests cancellation. It reports whether this call performed the
// Running -> CancelRequested transition.
func (cp *Plane) Cancel() bool {
	return cp.state.CompareAndSwap(int32(Running), int32(CancelRequested))
}

// IsCancelled reports whether cancellation has been requested.
func (cp *Plane) IsCancelled() bool {
	return cp.State() == CancelRequested
}

// Finish moves the plane to Terminal and returns the state it left.
func (cp *Plane) Finish() State {
	return State(cp.state.Swap(int32(Terminal)))
}

// CheckCancelled returns a CANCELLED error once cancellation was requested.
func (cp *Plane) CheckCancelled() error {
	if cp.IsCancelled() {
		return core.ErrState(core.CodeCancelled, "workflow cancelled by user")
	}
	return nil
}
