package workflow

import (
	"fmt"

	"github.com/garyjia/proposal-approval/internal/domain/errs"
)

var (
	// ErrInvalidTransition is returned when a trigger is not permitted from the current state
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", errs.ErrIllegalState)

	// ErrGuardFailed is returned when every guarded transition for a trigger refused
	ErrGuardFailed = fmt.Errorf("%w: guard condition failed", errs.ErrIllegalState)

	// ErrStepAlreadyDecided is returned when the current step has already left PENDING
	ErrStepAlreadyDecided = fmt.Errorf("%w: current step already decided", errs.ErrIllegalState)
)
