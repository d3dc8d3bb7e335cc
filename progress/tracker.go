// Package progress keeps live per-target feed tallies for the status API.
package progress

import (
	"sort"
	"sync"

	"github.com/use-agent/feeder/models"
)

// Tracker records feed progress reported by concurrent workers.
// It is safe for concurrent use and implements feed.Observer.
type Tracker struct {
	mu      sync.RWMutex
	targets map[string]*models.Progress
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{targets: make(map[string]*models.Progress)}
}

func (t *Tracker) entry(target string) *models.Progress {
	p, ok := t.targets[target]
	if !ok {
		p = &models.Progress{Tally: models.Tally{Target: target}}
		t.targets[target] = p
	}
	return p
}

// Start marks target as running with total scheduled attempts.
func (t *Tracker) Start(target string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.entry(target)
	p.Tally = models.Tally{Target: target, Total: total}
	p.Running = true
	p.Error = ""
}

// Record adds one attempt outcome.
func (t *Tracker) Record(target string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.entry(target)
	if ok {
		p.Successful++
	} else {
		p.Failed++
	}
}

// Finish stores the final tally and any run error for target.
func (t *Tracker) Finish(target string, tally models.Tally, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.entry(target)
	p.Tally = tally
	p.Tally.Target = target
	p.Running = false
	if err != nil {
		p.Error = err.Error()
	}
}

// Get returns a copy of target's progress.
func (t *Tracker) Get(target string) (models.Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.targets[target]
	if !ok {
		return models.Progress{}, false
	}
	return *p, true
}

// Snapshot returns copies of every target's progress sorted by target.
func (t *Tracker) Snapshot() []models.Progress {
	t.mu.RLock()
	out := make([]models.Progress, 0, len(t.targets))
	for _, p := range t.targets {
		out = append(out, *p)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// Running returns how many targets are still being fed.
func (t *Tracker) Running() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, p := range t.targets {
		if p.Running {
			n++
		}
	}
	return n
}
