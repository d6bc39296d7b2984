package coordinator

import (
	"context"
	"time"
)

// run schedules ticks on loopCtx and issues remote calls on callCtx, so that
// stopping the schedule does not cut off a call already in flight.
func (c *Coordinator) run(loopCtx, callCtx context.Context) {
	c.logger.Info("Analysis loop started", "cooldown", c.cfg.Cooldown, "tick", c.cfg.Tick)
	defer c.logger.Info("Analysis loop stopped")

	if c.cfg.InitialDelay > 0 {
		timer := time.NewTimer(c.cfg.InitialDelay)
		select {
		case <-loopCtx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		// A tick buffered during a slow call must not start a cycle after Stop.
		if loopCtx.Err() != nil {
			return
		}
		c.PollCycle(callCtx)
		select {
		case <-loopCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Start runs the loop in a background goroutine. Cancelling ctx stops tick
// scheduling; an in-flight call is only abandoned by Stop. Calling Start on a
// running coordinator does nothing.
func (c *Coordinator) Start(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.done != nil {
		return
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	callCtx, abandon := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	c.stopLoop = stopLoop
	c.abandon = abandon
	c.done = done

	go func() {
		defer close(done)
		c.run(loopCtx, callCtx)
	}()
}

// Stop ends tick scheduling and waits up to timeout for the loop to exit.
// When the wait times out the in-flight call is cancelled and Stop returns
// false without waiting further.
func (c *Coordinator) Stop(timeout time.Duration) bool {
	c.lifecycleMu.Lock()
	stopLoop, abandon, done := c.stopLoop, c.abandon, c.done
	c.stopLoop, c.abandon, c.done = nil, nil, nil
	c.lifecycleMu.Unlock()

	if done == nil {
		return true
	}

	stopLoop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		abandon()
		return true
	case <-timer.C:
		c.logger.Warn("Analysis loop did not stop in time, abandoning in-flight request", "timeout", timeout)
		abandon()
		return false
	}
}
