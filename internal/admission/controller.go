// Package admission caps the number of extraction jobs running at once.
package admission

import "sync"

// Controller is a counting semaphore over a fixed number of job slots
type Controller struct {
	slots chan struct{}
}

func NewController(capacity int) *Controller {
	return &Controller{slots: make(chan struct{}, capacity)}
}

// TryStart takes a slot without blocking
func (c *Controller) TryStart() bool {
	select {
	case c.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Finish returns a slot. It must be called once per successful TryStart; an
// unmatched call is ignored so the count never goes negative.
func (c *Controller) Finish() {
	select {
	case <-c.slots:
	default:
	}
}

// Acquire takes a slot and returns its release function. Calling release more
// than once frees the slot only once.
func (c *Controller) Acquire() (release func(), ok bool) {
	if !c.TryStart() {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(c.Finish) }, true
}

// Active is the number of slots currently taken
func (c *Controller) Active() int {
	return len(c.slots)
}

// Capacity is the maximum number of concurrent jobs
func (c *Controller) Capacity() int {
	return cap(c.slots)
}
