package observer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/netwarden/warden/flow"
	"github.com/netwarden/warden/process"
	"github.com/netwarden/warden/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dropbox = process.Identity{Kind: process.KindApplication, Name: "Dropbox", BundleID: "com.getdropbox.dropbox"}
	safari  = process.Identity{Kind: process.KindApplication, Name: "Safari", BundleID: "com.apple.Safari"}
	key     = flow.Key{RemoteHost: "example.com", RemotePort: 443, LocalPort: 50000, Direction: flow.Outbound}
)

func TestRecordAggregates(t *testing.T) {
	o := New()
	now := time.Now()

	o.Record(Observation{Time: now, Process: dropbox, BytesOut: 100, Action: rule.ActionBlock})
	o.Record(Observation{Time: now.Add(time.Second), Process: dropbox, BytesIn: 50, Action: rule.ActionBlock})
	o.Record(Observation{Time: now, Process: safari, BytesIn: 10, Action: rule.ActionInspect})

	ps, ok := o.Process(dropbox.ID())
	require.True(t, ok)
	assert.Equal(t, uint64(2), ps.Count)
	assert.Equal(t, uint64(150), ps.BytesBlocked)
	assert.Equal(t, uint64(0), ps.BytesAllowed)
	assert.Equal(t, now.Add(time.Second), ps.LastSeen)
	assert.False(t, ps.Bursty)

	ps, ok = o.Process(safari.ID())
	require.True(t, ok)
	assert.Equal(t, uint64(10), ps.BytesAllowed)

	_, ok = o.Process("nope")
	assert.False(t, ok)
}

func TestBursty(t *testing.T) {
	o := New(BurstThresholdOption(1000))
	o.Record(Observation{Process: dropbox, BytesIn: 999})
	ps, _ := o.Process(dropbox.ID())
	assert.False(t, ps.Bursty)

	o.Record(Observation{Process: dropbox, BytesIn: 600, BytesOut: 400})
	ps, _ = o.Process(dropbox.ID())
	assert.True(t, ps.Bursty)

	o.Track(key, safari)
	o.RecordBytes(flow.Inbound, 700, key)
	ps, _ = o.Process(safari.ID())
	assert.False(t, ps.Bursty)
	o.RecordBytes(flow.Outbound, 300, key)
	ps, _ = o.Process(safari.ID())
	assert.True(t, ps.Bursty)
	assert.Equal(t, uint64(1000), ps.BytesAllowed)
}

func TestRecordBytes(t *testing.T) {
	o := New()
	o.RecordBytes(flow.Inbound, 10, key)
	o.RecordBytes(flow.Inbound, 5, key)
	o.RecordBytes(flow.Outbound, 7, key)
	o.RecordBytes(flow.Outbound, 0, key)

	fs, ok := o.Flow(key)
	require.True(t, ok)
	assert.Equal(t, uint64(15), fs.BytesIn)
	assert.Equal(t, uint64(7), fs.BytesOut)
	assert.Empty(t, fs.Process)
	assert.Equal(t, uint64(22), o.Totals().AllowedBytes)

	o.Track(key, safari)
	fs, _ = o.Flow(key)
	assert.Equal(t, safari.ID(), fs.Process)

	o.ForgetFlow(key)
	_, ok = o.Flow(key)
	assert.False(t, ok)
}

func TestBlock(t *testing.T) {
	o := New()
	k1 := flow.Key{RemoteHost: "dropbox.com", RemotePort: 443, LocalPort: 1, Direction: flow.Outbound}
	k2 := flow.Key{RemoteHost: "dropbox.com", RemotePort: 443, LocalPort: 2, Direction: flow.Outbound}
	k3 := flow.Key{RemoteHost: "dropbox.com", RemotePort: 443, LocalPort: 3, Direction: flow.Outbound}

	o.Track(k1, dropbox)
	o.RecordBytes(flow.Inbound, 3000, k1)
	o.Track(k2, dropbox)
	o.RecordBytes(flow.Outbound, 1000, k2)

	assert.Equal(t, uint64(2000), o.Block(k3, dropbox))
	o.RecordBytes(flow.Inbound, 500, k3)

	ps, ok := o.Process(dropbox.ID())
	require.True(t, ok)
	assert.Equal(t, uint64(4000), ps.BytesAllowed)
	assert.Equal(t, uint64(2500), ps.BytesBlocked)
	assert.Equal(t, uint64(1), ps.BlockedFlows)
	assert.Equal(t, Totals{BlockedFlows: 1, AllowedBytes: 4000, BlockedBytes: 2500}, o.Totals())

	fs, ok := o.Flow(k3)
	require.True(t, ok)
	assert.True(t, fs.Blocked)
	assert.Equal(t, dropbox.ID(), fs.Process)

	// no allowed flows, no estimate
	assert.Zero(t, o.Block(key, safari))
	stats := o.Statistics()
	require.Len(t, stats.TopBlocked, 2)
	assert.Equal(t, "Dropbox", stats.TopBlocked[0].Process.Name)
	assert.Equal(t, "Safari", stats.TopBlocked[1].Process.Name)
}

func TestMaxFlows(t *testing.T) {
	o := New(MaxFlowsOption(3))
	for i := 0; i < 10; i++ {
		o.RecordBytes(flow.Outbound, 1, flow.Key{RemoteHost: "h", RemotePort: 1000 + i})
	}
	assert.Len(t, o.Flows(), 3)
	assert.Equal(t, uint64(10), o.Totals().AllowedBytes)
}

func TestRecentAndForProcess(t *testing.T) {
	o := New(HistoryOption(3))
	for i := 0; i < 5; i++ {
		p := safari
		if i%2 == 0 {
			p = dropbox
		}
		o.Record(Observation{Process: p, BytesIn: uint64(i)})
	}

	recent := o.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, []uint64{4, 3, 2}, []uint64{recent[0].BytesIn, recent[1].BytesIn, recent[2].BytesIn})

	recent = o.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, uint64(4), recent[0].BytesIn)

	obs := o.ForProcess(dropbox.ID())
	require.Len(t, obs, 2)
	assert.Equal(t, uint64(2), obs[0].BytesIn)
	assert.Equal(t, uint64(4), obs[1].BytesIn)
	assert.Empty(t, o.ForProcess("unknown.nothing"))
}

func TestStatisticsTopN(t *testing.T) {
	o := New()
	for i := 0; i < 15; i++ {
		p := process.Identity{Kind: process.KindApplication, Name: fmt.Sprintf("app%02d", i)}
		o.Record(Observation{Process: p, BytesOut: uint64(100 * (i + 1)), Action: rule.ActionBlock})
	}
	o.Record(Observation{Process: safari, BytesIn: 1})
	o.RecordBlocked(500)
	o.RecordAllowed()

	stats := o.Statistics()
	require.Len(t, stats.TopBlocked, TopN)
	assert.Equal(t, "app14", stats.TopBlocked[0].Process.Name)
	assert.Equal(t, "app05", stats.TopBlocked[TopN-1].Process.Name)
	require.Len(t, stats.TopAllowed, 1)
	assert.Equal(t, "Safari", stats.TopAllowed[0].Process.Name)
	assert.Equal(t, 16, stats.Processes)
	assert.Equal(t, 16, stats.Observations)
	assert.Equal(t, Totals{AllowedFlows: 1, BlockedFlows: 1, BlockedBytes: 500}, stats.Totals)
}

func TestClear(t *testing.T) {
	o := New()
	o.Record(Observation{Process: dropbox, BytesIn: 10, Action: rule.ActionBlock})
	o.RecordBytes(flow.Inbound, 10, key)
	o.RecordBlocked(100)
	o.RecordAllowed()
	assert.True(t, o.IsUpdated())

	o.Clear()
	assert.Equal(t, Totals{}, o.Totals())
	assert.Empty(t, o.Recent(0))
	assert.Empty(t, o.Flows())
	_, ok := o.Process(dropbox.ID())
	assert.False(t, ok)
	assert.False(t, o.IsUpdated())

	stats := o.Statistics()
	assert.Zero(t, stats.Processes)
	assert.Zero(t, stats.Observations)
}

func TestSnapshot(t *testing.T) {
	o := New()
	o.Record(Observation{Process: safari})
	o.Record(Observation{Process: dropbox})
	snap := o.Snapshot()
	require.Len(t, snap.Processes, 2)
	assert.Equal(t, "com.apple.Safari", snap.Processes[0].Process.ID())
	assert.Len(t, snap.Observations, 2)
	assert.False(t, snap.Time.IsZero())
}

func TestSubscribe(t *testing.T) {
	o := New()
	ch, cancel := o.Subscribe()

	o.Record(Observation{Process: safari, BytesIn: 1})
	select {
	case obs := <-ch:
		assert.Equal(t, uint64(1), obs.BytesIn)
	case <-time.After(time.Second):
		t.Fatal("no observation")
	}

	// a full subscriber never blocks Record
	for i := 0; i < subscriberBuffer*2; i++ {
		o.Record(Observation{Process: safari})
	}
	cancel()
	cancel()
	for range ch {
	}
}

func TestConcurrentRecording(t *testing.T) {
	o := New(HistoryOption(100))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := flow.Key{RemoteHost: "h", RemotePort: 1 + i%2}
			for j := 0; j < 200; j++ {
				o.Record(Observation{Process: safari, BytesIn: 1})
				o.RecordBytes(flow.Inbound, 1, k)
				o.RecordAllowed()
				if j%50 == 0 {
					o.Statistics()
				}
			}
		}(i)
	}
	wg.Wait()

	ps, _ := o.Process(safari.ID())
	assert.Equal(t, uint64(1600), ps.Count)
	assert.Equal(t, uint64(1600), o.Totals().AllowedFlows)
	assert.Equal(t, uint64(1600), o.Totals().AllowedBytes)
	assert.Equal(t, 100, len(o.Recent(0)))
}
