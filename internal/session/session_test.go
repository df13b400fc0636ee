package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/lpbot/internal/config"
	"github.com/web3guy0/lpbot/internal/monitor"
)

func TestLogsRingBuffer(t *testing.T) {
	s := New(config.Runtime{})
	for i := 0; i < LogLimit+25; i++ {
		s.AddLog("info", fmt.Sprintf("line %d", i))
	}

	all := s.Logs(1000)
	require.Len(t, all, LogLimit)
	assert.Equal(t, "line 25", all[0].Message)
	assert.Equal(t, fmt.Sprintf("line %d", LogLimit+24), all[len(all)-1].Message)

	def := s.Logs(0)
	assert.Len(t, def, DefaultLogLimit)
	assert.Equal(t, all[len(all)-1].Seq, def[len(def)-1].Seq)

	one := s.Logs(1)
	require.Len(t, one, 1)
}

func TestBusyFlagExclusive(t *testing.T) {
	s := New(config.Runtime{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryAcquire() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.True(t, s.Busy())

	s.Release()
	assert.False(t, s.Busy())
	assert.True(t, s.TryAcquire())
}

func TestSnapshotCarriesBusy(t *testing.T) {
	s := New(config.Runtime{})
	_, ok := s.Snapshot()
	assert.False(t, ok)

	s.SetSnapshot(monitor.Snapshot{TokenID: "7"})
	require.True(t, s.TryAcquire())
	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "7", snap.TokenID)
	assert.True(t, snap.Busy)

	s.ClearSnapshot()
	_, ok = s.Snapshot()
	assert.False(t, ok)
}

func TestConfigRoundTrip(t *testing.T) {
	s := New(config.Runtime{TickRange: 50})
	assert.Equal(t, 50, s.Config().TickRange)
	s.SetConfig(config.Runtime{TickRange: 70})
	assert.Equal(t, 70, s.Config().TickRange)
}
