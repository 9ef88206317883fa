package filter

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-gost/core/logger"
	"github.com/netwarden/warden/flow"
	xlogger "github.com/netwarden/warden/logger"
	"github.com/netwarden/warden/network"
	"github.com/netwarden/warden/process"
	"github.com/netwarden/warden/rule"
	"github.com/netwarden/warden/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	mu    sync.Mutex
	apps  map[int]process.AppInfo
	procs map[int]process.ProcInfo
	calls int
}

func (f *fakeInspector) Application(pid int) (process.AppInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	app, ok := f.apps[pid]
	return app, ok
}

func (f *fakeInspector) Process(pid int) (process.ProcInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	proc, ok := f.procs[pid]
	return proc, ok
}

const (
	pidDropbox = 100
	pidSafari  = 200
	pidDaemon  = 300
	pidChrome  = 400
	pidHelper  = 401
)

func newInspector() *fakeInspector {
	return &fakeInspector{
		apps: map[int]process.AppInfo{
			pidDropbox: {Name: "Dropbox", BundleID: "com.getdropbox.dropbox", Path: "/Applications/Dropbox.app"},
			pidSafari:  {Name: "Safari", BundleID: "com.apple.Safari", Path: "/Applications/Safari.app"},
			pidChrome:  {Name: "Google Chrome", BundleID: "com.google.Chrome", Path: "/Applications/Google Chrome.app"},
			pidHelper:  {Name: "Google Chrome Helper", BundleID: "com.google.Chrome.helper", Path: "/Applications/Google Chrome.app/Helper"},
		},
		procs: map[int]process.ProcInfo{
			pidDaemon: {Name: "com.example.backgroundd", Path: "/opt/example/com.example.backgroundd"},
		},
	}
}

func newFilter(t *testing.T, opts ...Option) (*Filter, *fakeInspector) {
	t.Helper()
	insp := newInspector()
	opts = append([]Option{ResolverOption(process.NewResolver(insp))}, opts...)
	f := New(opts...)
	t.Cleanup(func() { f.Close() })
	return f, insp
}

func event(pid int, host string) flow.Event {
	return flow.Event{PID: pid, RemoteHost: host, RemotePort: 443, LocalPort: 50000 + pid, Direction: flow.Outbound}
}

var homeWiFi = trust.NetworkConfig{
	ID:          "home",
	Name:        "Home",
	Identifiers: []network.Identifier{network.Name("HomeWiFi")},
	Enabled:     true,
}

func TestTrustedNetworkAllowsEverything(t *testing.T) {
	f, _ := newFilter(t)
	require.NoError(t, f.UpdateNetworks([]trust.NetworkConfig{homeWiFi}))
	f.UpdateNetwork(&network.Network{Name: "HomeWiFi", Kind: network.KindWiFi, HardwareAddr: "aa:bb:cc:dd:ee:ff"})

	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(event(pidDropbox, "dropbox.com")))
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(event(pidDaemon, "example.com")))
	assert.Empty(t, f.RecentTraffic(0))
	assert.Equal(t, uint64(2), f.Status().Totals.AllowedFlows)
}

func TestCellularBlocksDropbox(t *testing.T) {
	f, _ := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular, Interface: "wwan0"})

	assert.Equal(t, flow.VerdictDrop, f.HandleNewFlow(event(pidDropbox, "dropbox.com")))
	assert.Equal(t, flow.VerdictDrop, f.HandleNewFlow(event(pidDaemon, "example.com")))
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(event(pidSafari, "example.com")))

	recent := f.RecentTraffic(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "com.example.backgroundd", recent[0].Process.Name)
	assert.Equal(t, rule.ActionBlock, recent[1].Action)
	assert.False(t, recent[1].Trusted)

	assert.Len(t, f.ProcessTraffic("com.getdropbox.dropbox"), 1)
	assert.Equal(t, uint64(2), f.Status().Totals.BlockedFlows)
}

func TestDecisionCache(t *testing.T) {
	f, insp := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})

	ev := event(pidDropbox, "dropbox.com")
	for i := 0; i < 5; i++ {
		assert.Equal(t, flow.VerdictDrop, f.HandleNewFlow(ev))
	}
	assert.Equal(t, 1, insp.calls)
	st := f.Statistics()
	assert.Equal(t, uint64(4), st.DecisionCache.Hits)
	assert.Equal(t, uint64(1), st.Engine.Evaluations)

	// a trust change invalidates cached decisions
	require.NoError(t, f.UpdateNetworks([]trust.NetworkConfig{{ID: "phone", Enabled: true, Identifiers: []network.Identifier{network.Interface("wwan0")}}}))
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular, Interface: "wwan0"})
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(ev))
}

func TestUpdateRules(t *testing.T) {
	f, _ := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})
	ev := event(pidSafari, "example.com")
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(ev))

	require.NoError(t, f.UpdateRules([]rule.Rule{{Target: "Safari", Action: rule.ActionInspect}}))
	assert.Equal(t, flow.VerdictInspect, f.HandleNewFlow(ev))

	err := f.UpdateRules([]rule.Rule{{Target: "Safari", Action: "maybe"}})
	assert.ErrorIs(t, err, rule.ErrInvalidRule)
	assert.Equal(t, flow.VerdictInspect, f.HandleNewFlow(ev))
	assert.Len(t, f.Rules(), 1)
}

// pausingLogger holds the first traced rule evaluation until released.
type pausingLogger struct {
	logger.Logger
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newPausingLogger() *pausingLogger {
	return &pausingLogger{
		Logger:  xlogger.Nop(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (l *pausingLogger) IsLevelEnabled(lvl logger.LogLevel) bool {
	return lvl == logger.TraceLevel
}

func (l *pausingLogger) Tracef(format string, args ...any) {
	l.once.Do(func() {
		close(l.entered)
		<-l.release
	})
}

func TestUpdateDuringEvaluation(t *testing.T) {
	tests := []struct {
		name   string
		update func(f *Filter) error
	}{
		{
			name: "rules",
			update: func(f *Filter) error {
				return f.UpdateRules([]rule.Rule{{Target: "com.getdropbox.dropbox", Action: rule.ActionAllow, Priority: 1000}})
			},
		},
		{
			name: "networks",
			update: func(f *Filter) error {
				return f.UpdateNetworks([]trust.NetworkConfig{{ID: "phone", Enabled: true, Identifiers: []network.Identifier{network.Interface("wwan0")}}})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newPausingLogger()
			f, _ := newFilter(t, RuleEngineOption(rule.NewEngine(rule.LoggerOption(l))))
			f.UpdateNetwork(&network.Network{Kind: network.KindCellular, Interface: "wwan0"})

			ev := event(pidDropbox, "dropbox.com")
			done := make(chan flow.Verdict, 1)
			go func() { done <- f.HandleNewFlow(ev) }()

			select {
			case <-l.entered:
			case <-time.After(2 * time.Second):
				t.Fatal("evaluation did not start")
			}
			require.NoError(t, tt.update(f))
			close(l.release)

			// the in-flight flow was decided under the previous state
			assert.Equal(t, flow.VerdictDrop, <-done)
			assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(ev))
		})
	}
}

func TestBlockedFlowBytes(t *testing.T) {
	f, _ := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})

	for i := 0; i < 5; i++ {
		ev := flow.Event{PID: pidDropbox, RemoteHost: "dropbox.com", RemotePort: 443, LocalPort: 51000 + i, Direction: flow.Outbound}
		require.Equal(t, flow.VerdictDrop, f.HandleNewFlow(ev))
		key, err := ev.Key()
		require.NoError(t, err)
		assert.Equal(t, flow.VerdictAllow, f.HandleBytes(flow.Inbound, 1000, key))
	}

	st := f.Statistics()
	assert.Equal(t, uint64(5), st.Totals.BlockedFlows)
	assert.Equal(t, uint64(5000), st.Totals.BlockedBytes)
	assert.Zero(t, st.Totals.AllowedBytes)
	require.Len(t, st.TopBlocked, 1)
	assert.Equal(t, "Dropbox", st.TopBlocked[0].Process.Name)
	assert.Equal(t, uint64(5), st.TopBlocked[0].BlockedFlows)
	assert.Equal(t, uint64(5000), st.TopBlocked[0].BytesBlocked)
	assert.Empty(t, st.TopAllowed)
}

func TestBlockedFlowEstimate(t *testing.T) {
	f, _ := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})
	require.NoError(t, f.UpdateRules([]rule.Rule{{Target: "Dropbox", Action: rule.ActionInspect}}))

	ev := event(pidDropbox, "dropbox.com")
	require.Equal(t, flow.VerdictInspect, f.HandleNewFlow(ev))
	key, _ := ev.Key()
	f.HandleBytes(flow.Inbound, 4096, key)

	require.NoError(t, f.UpdateRules(nil))
	ev.LocalPort++
	require.Equal(t, flow.VerdictDrop, f.HandleNewFlow(ev))

	st := f.Statistics()
	assert.Equal(t, uint64(4096), st.Totals.BlockedBytes)
	require.Len(t, st.TopBlocked, 1)
	assert.Equal(t, uint64(4096), st.TopBlocked[0].BytesBlocked)
}

func TestHandleCloseAndExit(t *testing.T) {
	f, insp := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})
	require.NoError(t, f.UpdateRules([]rule.Rule{{Target: "Safari", Action: rule.ActionInspect}}))

	ev := event(pidSafari, "example.com")
	require.Equal(t, flow.VerdictInspect, f.HandleNewFlow(ev))
	key, _ := ev.Key()
	f.HandleBytes(flow.Inbound, 100, key)
	assert.Equal(t, 1, f.Statistics().Flows)
	assert.Equal(t, 1, f.Status().Counts.Decisions)

	f.HandleClose(key)
	assert.Zero(t, f.Statistics().Flows)
	assert.Zero(t, f.Status().Counts.Decisions)

	calls := insp.calls
	f.HandleNewFlow(ev)
	assert.Equal(t, calls, insp.calls)

	f.HandleExit(pidSafari)
	f.HandleClose(key)
	f.HandleNewFlow(ev)
	assert.Equal(t, calls+1, insp.calls)
}

func TestInspectedFlowBytes(t *testing.T) {
	f, _ := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})
	require.NoError(t, f.UpdateRules([]rule.Rule{{Target: "Safari", Action: rule.ActionInspect}}))

	ev := event(pidSafari, "example.com")
	require.Equal(t, flow.VerdictInspect, f.HandleNewFlow(ev))
	key, err := ev.Key()
	require.NoError(t, err)

	assert.Equal(t, flow.VerdictAllow, f.HandleBytes(flow.Inbound, 1500, key))
	assert.Equal(t, flow.VerdictAllow, f.HandleBytes(flow.Outbound, 500, key))
	assert.Equal(t, flow.VerdictAllow, f.HandleBytes(flow.Outbound, -1, key))

	st := f.Statistics()
	assert.Equal(t, uint64(2000), st.Totals.AllowedBytes)
	require.NotEmpty(t, st.TopAllowed)
	assert.Equal(t, "Safari", st.TopAllowed[0].Process.Name)
	assert.Equal(t, uint64(2000), st.TopAllowed[0].BytesAllowed)
}

func TestDisabled(t *testing.T) {
	f, insp := newFilter(t, EnabledOption(false))
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(event(pidDropbox, "dropbox.com")))
	assert.Zero(t, insp.calls)

	f.SetEnabled(true)
	assert.True(t, f.IsEnabled())
	assert.Equal(t, flow.VerdictDrop, f.HandleNewFlow(event(pidDropbox, "dropbox.com")))
}

func TestMalformedFlowAllowed(t *testing.T) {
	f, _ := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(flow.Event{PID: pidDropbox}))
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(flow.Event{PID: pidDropbox, RemoteHost: "x", RemotePort: 99999}))
}

func TestExempt(t *testing.T) {
	f, _ := newFilter(t, ExemptHostsOption([]string{".apple.com", "10.0.0.0/8", "192.0.2.1"}), ExemptPIDsOption(pidDaemon))
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})

	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(event(pidDropbox, "swscan.apple.com")))
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(event(pidDropbox, "10.1.2.3")))
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(event(pidDropbox, "192.0.2.1")))
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(event(pidDaemon, "example.com")))
	assert.Equal(t, flow.VerdictDrop, f.HandleNewFlow(event(pidDropbox, "dropbox.com")))
}

func TestCallerToken(t *testing.T) {
	f, _ := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})

	token := make([]byte, 32)
	binary.LittleEndian.PutUint32(token[20:], pidDropbox)
	ev := flow.Event{Caller: token, RemoteHost: "dropbox.com", RemotePort: 443}
	assert.Equal(t, flow.VerdictDrop, f.HandleNewFlow(ev))

	// unresolvable callers are unknown processes, blocked on untrusted networks
	ev = flow.Event{Caller: []byte{1, 2}, RemoteHost: "example.org", RemotePort: 443}
	assert.Equal(t, flow.VerdictDrop, f.HandleNewFlow(ev))
}

type panicInspector struct{ fakeInspector }

func (*panicInspector) Application(int) (process.AppInfo, bool) { panic("boom") }

func TestPanicResolvesToAllow(t *testing.T) {
	// the resolver recovers inspector panics into unknown identities
	f := New(ResolverOption(process.NewResolver(&panicInspector{})))
	defer f.Close()
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})
	assert.Equal(t, flow.VerdictDrop, f.HandleNewFlow(event(1, "example.com")))

	// a nil observer panics inside HandleNewFlow
	f.observer = nil
	assert.Equal(t, flow.VerdictAllow, f.HandleNewFlow(event(2, "example.net")))
}

func TestStatisticsGroups(t *testing.T) {
	f, _ := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})
	require.NoError(t, f.UpdateRules([]rule.Rule{{Target: "com.google.Chrome*", Action: rule.ActionInspect}}))

	for _, pid := range []int{pidChrome, pidHelper} {
		ev := event(pid, "google.com")
		require.Equal(t, flow.VerdictInspect, f.HandleNewFlow(ev))
		key, _ := ev.Key()
		f.HandleBytes(flow.Inbound, 1000, key)
	}

	st := f.Statistics()
	require.Len(t, st.Groups, 1)
	assert.Equal(t, "com.google.Chrome", st.Groups[0].Parent.BundleID)
	assert.Len(t, st.Groups[0].Helpers, 1)
	assert.Equal(t, uint64(2), st.Groups[0].Count)
	assert.Equal(t, uint64(2000), st.Groups[0].BytesAllowed)
}

func TestClearStatistics(t *testing.T) {
	f, _ := newFilter(t)
	f.UpdateNetwork(&network.Network{Kind: network.KindCellular})
	f.HandleNewFlow(event(pidDropbox, "dropbox.com"))
	f.HandleNewFlow(event(pidSafari, "example.com"))

	f.ClearStatistics()
	st := f.Statistics()
	assert.Zero(t, st.Totals.AllowedFlows)
	assert.Zero(t, st.Totals.BlockedFlows)
	assert.Zero(t, st.Totals.AllowedBytes)
	assert.Zero(t, st.Totals.BlockedBytes)
	assert.Zero(t, st.Processes)
	assert.Empty(t, f.RecentTraffic(0))
	assert.Zero(t, st.Engine.Evaluations)
}

type detector struct{ n *network.Network }

func (d detector) Detect(context.Context) (*network.Network, error) { return d.n, nil }

func TestReevaluateNetwork(t *testing.T) {
	te := trust.NewEngine(trust.DetectorOption(detector{n: &network.Network{Name: "HomeWiFi", HardwareAddr: "aa:bb:cc:dd:ee:ff"}}))
	f, _ := newFilter(t, TrustEngineOption(te))
	require.NoError(t, f.UpdateNetworks([]trust.NetworkConfig{homeWiFi}))

	st, err := f.ReevaluateNetwork(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Trusted)
	assert.True(t, f.Status().Trusted)
	assert.Equal(t, 1, f.Status().Counts.Networks)
}

type memLoader struct {
	mu   sync.Mutex
	data string
	list []string
	err  error
}

func (l *memLoader) set(data string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = data
}

func (l *memLoader) Load(context.Context) (io.Reader, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return bytes.NewBufferString(l.data), nil
}

func (l *memLoader) Close() error { return nil }

type memLister struct{ memLoader }

func (l *memLister) List(context.Context) ([]string, error) { return l.list, l.err }

func TestRuleSources(t *testing.T) {
	file := &memLoader{data: "- {target: Safari, action: inspect, priority: 5}\n"}
	redis := &memLister{memLoader: memLoader{list: []string{"{target: curl, action: block}"}}}
	http := &memLoader{err: errors.New("connection refused")}

	f, _ := newFilter(t, FileLoaderOption(file), RedisLoaderOption(redis), HTTPLoaderOption(http))
	require.NoError(t, f.UpdateRules([]rule.Rule{{Target: "Notes", Action: rule.ActionAllow}}))

	var targets []string
	for _, r := range f.Rules() {
		targets = append(targets, r.Target)
	}
	assert.Equal(t, []string{"Safari", "Notes", "curl"}, targets)

	// an invalid source document keeps the previous rules
	file.set("- {target: Safari, action: sometimes}\n")
	err := f.reload(context.Background())
	assert.ErrorIs(t, err, rule.ErrInvalidRule)
	assert.Len(t, f.Rules(), 3)

	file.set("")
	require.NoError(t, f.reload(context.Background()))
	assert.Len(t, f.Rules(), 2)
}

func TestPeriodReload(t *testing.T) {
	file := &memLoader{data: ""}
	f, _ := newFilter(t, FileLoaderOption(file), ReloadPeriodOption(time.Second))
	assert.Empty(t, f.Rules())

	file.set("- {target: curl, action: block}\n")
	assert.Eventually(t, func() bool { return len(f.Rules()) == 1 }, 3*time.Second, 50*time.Millisecond)
}
