// Package scheduler runs the watcher's periodic jobs.
//
// Jobs are registered with Every (fixed interval) or DailyAt (wall-clock time
// of day) and run synchronously, in registration order, from a single loop.
// The loop sleeps a fixed tick between passes and returns once the shared
// RunState reports that an availability alert was delivered.
package scheduler
