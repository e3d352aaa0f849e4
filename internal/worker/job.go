// Package worker runs named background tasks on fixed intervals.
//
// Tasks are registered before calling Pool.Start. Each task gets a dedicated
// goroutine that runs it once at start and then on every tick; a failing run
// is logged and retried on the next tick.
package worker

import "context"

// Task is the function executed on every tick. A non-nil error is logged;
// it does not stop the schedule.
type Task func(ctx context.Context) error
