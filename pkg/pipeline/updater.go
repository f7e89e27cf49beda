package pipeline

import (
	"sync"

	"bandstretch/internal/models"
)

// Updater is a single-slot queue of pending series. Submitting while an
// update is already pending replaces it, so a slow transform only ever
// works on the newest data and producers never block.
type Updater struct {
	mu      sync.Mutex
	pending chan models.Series
	dropped int
}

// NewUpdater creates an empty queue
func NewUpdater() *Updater {
	return &Updater{pending: make(chan models.Series, 1)}
}

// Submit queues s, discarding any update that has not been picked up yet
func (u *Updater) Submit(s models.Series) {
	u.mu.Lock()
	defer u.mu.Unlock()

	select {
	case <-u.pending:
		u.dropped++
	default:
	}
	u.pending <- s
}

// C delivers pending updates to the single consumer
func (u *Updater) C() <-chan models.Series {
	return u.pending
}

// Dropped returns how many updates were replaced before being consumed
func (u *Updater) Dropped() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dropped
}
