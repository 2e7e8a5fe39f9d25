package sim

import (
	"sync"
	"time"
)

// Clock paces frames in wall-clock time and broadcasts the simulated frame
// duration to subscribers on every tick.
type Clock struct {
	interval time.Duration
	frame    time.Duration

	mu          sync.Mutex
	frames      int64
	subscribers map[chan<- time.Duration]struct{}
}

// NewClock creates a stopped Clock that fires every interval and reports
// frame as the simulated time of each tick.
//
// Precondition: interval > 0; frame > 0.
// Postcondition: Returns a non-nil *Clock ready to Start().
func NewClock(interval, frame time.Duration) *Clock {
	return &Clock{
		interval:    interval,
		frame:       frame,
		subscribers: make(map[chan<- time.Duration]struct{}),
	}
}

// Frames returns the number of ticks fired so far.
func (c *Clock) Frames() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// Subscribe registers ch to receive the frame duration on each tick.
// If ch is full, the tick is dropped for that subscriber (non-blocking).
//
// Precondition: ch must not be nil.
func (c *Clock) Subscribe(ch chan<- time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers[ch] = struct{}{}
}

// Unsubscribe removes ch from the subscriber list.
func (c *Clock) Unsubscribe(ch chan<- time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribers, ch)
}

// Start launches the clock goroutine and returns a stop function.
// Calling stop() is idempotent.
//
// Postcondition: A tick is broadcast once per interval until stop() is called.
func (c *Clock) Start() (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				c.frames++
				subs := make([]chan<- time.Duration, 0, len(c.subscribers))
				for ch := range c.subscribers {
					subs = append(subs, ch)
				}
				c.mu.Unlock()
				for _, ch := range subs {
					select {
					case ch <- c.frame:
					default:
					}
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		once.Do(func() { close(done) })
	}
}
