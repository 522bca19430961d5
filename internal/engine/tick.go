// Package engine drives the market: a tick loop that clears the market house
// every tick and settles taxes and bankruptcy reports once per market day.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// DefaultTicksPerDay is how many market ticks make one market day.
const DefaultTicksPerDay = 24

// Engine drives the simulation forward.
type Engine struct {
	Tick        uint64        // Current tick counter (monotonic, never resets)
	Interval    time.Duration // Base tick interval
	TicksPerDay uint64
	MaxTicks    uint64 // Stop after this many ticks; 0 runs until stopped

	running atomic.Bool
	speed   atomic.Uint64 // float64 bits; 1.0 = real-time, 0 = paused

	// Callbacks for each tick layer, populated during setup.
	OnTick func(tick uint64) // Every tick
	OnDay  func(tick uint64) // Every TicksPerDay ticks
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	e := &Engine{
		Interval:    time.Second,
		TicksPerDay: DefaultTicksPerDay,
	}
	e.SetSpeed(1)
	return e
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// SetSpeed changes the speed multiplier. Safe to call while running.
func (e *Engine) SetSpeed(v float64) {
	e.speed.Store(math.Float64bits(v))
}

// Run starts the loop. Blocks until ctx is done, Stop is called or MaxTicks
// is reached.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	slog.Info("market engine started", "tick", e.Tick, "speed", e.Speed(), "interval", e.Interval)

	for e.running.Load() {
		if ctx.Err() != nil {
			break
		}
		speed := e.Speed()
		if speed <= 0 {
			// Paused.
			if !sleep(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		e.Step()
		if e.MaxTicks > 0 && e.Tick >= e.MaxTicks {
			break
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target && !sleep(ctx, target-elapsed) {
			break
		}
	}

	e.running.Store(false)
	slog.Info("market engine stopped", "tick", e.Tick)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Stop halts the loop after the current tick.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.TicksPerDay > 0 && e.Tick%e.TicksPerDay == 0 && e.OnDay != nil {
		e.OnDay(e.Tick)
	}
}

// SimTime renders a tick as a market day and hour.
func SimTime(tick, ticksPerDay uint64) string {
	if ticksPerDay == 0 {
		ticksPerDay = DefaultTicksPerDay
	}
	return fmt.Sprintf("Day %d, tick %d/%d", tick/ticksPerDay+1, tick%ticksPerDay, ticksPerDay)
}
