package progress

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/feeder/models"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker()

	tr.Start("piorun", 3)
	tr.Record("piorun", true)
	tr.Record("piorun", false)

	p, ok := tr.Get("piorun")
	require.True(t, ok)
	assert.True(t, p.Running)
	assert.Equal(t, 1, p.Successful)
	assert.Equal(t, 1, p.Failed)
	assert.Equal(t, 1, tr.Running())

	tr.Finish("piorun", models.Tally{Total: 3, Successful: 2, Failed: 1}, nil)

	p, _ = tr.Get("piorun")
	assert.False(t, p.Running)
	assert.Equal(t, "piorun", p.Target)
	assert.Equal(t, 2, p.Successful)
	assert.Zero(t, tr.Running())
}

func TestTracker_FinishWithoutStart(t *testing.T) {
	tr := NewTracker()

	tr.Finish("feniks", models.Tally{Total: 5}, errors.New("BROWSER_LAUNCH_FAILED: failed to launch browser"))

	p, ok := tr.Get("feniks")
	require.True(t, ok)
	assert.Contains(t, p.Error, "BROWSER_LAUNCH_FAILED")
	assert.False(t, p.Running)
}

func TestTracker_ConcurrentWorkers(t *testing.T) {
	tr := NewTracker()
	names := []string{"piorun", "azorek", "feniks", "amadeo"}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			tr.Start(n, 100)
			for i := 0; i < 100; i++ {
				tr.Record(n, i%2 == 0)
				_ = tr.Snapshot()
			}
		}(name)
	}
	wg.Wait()

	snap := tr.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, "amadeo", snap[0].Target)
	for _, p := range snap {
		assert.Equal(t, 100, p.Successful+p.Failed)
	}
}

func TestTracker_GetUnknown(t *testing.T) {
	_, ok := NewTracker().Get("reksio")
	assert.False(t, ok)
}
