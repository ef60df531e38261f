// Package worker runs the single consumer loop: claim a task, execute
// its pipeline, record the terminal state, deliver results, sleep,
// repeat. Shutdown is honored between tasks only.
package worker
