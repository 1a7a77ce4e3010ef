package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freshRegistry reopens the gate on a new registry for the duration of t.
func freshRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	prev := regOK.Load()
	regOK.Store(false)
	t.Cleanup(func() { regOK.Store(prev) })
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	return reg
}

func TestRegisterExposesEveryFamily(t *testing.T) {
	reg := freshRegistry(t)
	require.NoError(t, Register(reg), "second Register is a no-op")

	IncLogAppended("info")
	IncLogEvicted()
	IncStateSet()
	ObserveChat("ok", 0.25)
	IncSync("sent")
	IncSpawn("ok")
	SetMonitorRunning(true)
	RecordStateTransition("created", "mode_resolved")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]int{}
	for _, mf := range mfs {
		got[mf.GetName()] = len(mf.GetMetric())
	}
	for _, name := range []string{
		"reflexive_logs_appended_total",
		"reflexive_logs_evicted_total",
		"reflexive_state_sets_total",
		"reflexive_bridge_chat_requests_total",
		"reflexive_bridge_chat_duration_seconds",
		"reflexive_bridge_sync_total",
		"reflexive_monitor_spawns_total",
		"reflexive_monitor_running",
		"reflexive_instance_state_transitions_total",
	} {
		assert.Positive(t, got[name], name)
	}
}

func TestLabelledCounters(t *testing.T) {
	freshRegistry(t)
	before := testutil.ToFloat64(syncs.WithLabelValues("dropped"))
	IncSync("dropped")
	IncSync("dropped")
	assert.Equal(t, before+2, testutil.ToFloat64(syncs.WithLabelValues("dropped")))

	SetMonitorRunning(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(monitorRunning))
	SetMonitorRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(monitorRunning))

	before = testutil.ToFloat64(chatRequests.WithLabelValues("disabled"))
	IncChat("disabled")
	assert.Equal(t, before+1, testutil.ToFloat64(chatRequests.WithLabelValues("disabled")))
}

func TestHandlerServesDefaultRegistry(t *testing.T) {
	prev := regOK.Load()
	regOK.Store(false)
	t.Cleanup(func() { regOK.Store(prev) })
	require.NoError(t, Register(prometheus.DefaultRegisterer))

	IncSync("failed")
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `reflexive_bridge_sync_total{result="failed"}`)
}

func TestConcurrentRecording(t *testing.T) {
	reg := freshRegistry(t)
	before := testutil.ToFloat64(stateSets)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			IncLogAppended("stdout")
			IncStateSet()
		}()
	}
	wg.Wait()
	assert.Equal(t, before+50, testutil.ToFloat64(stateSets))
	_, err := reg.Gather()
	require.NoError(t, err)
}

func TestHelpersAreInertBeforeRegister(t *testing.T) {
	prev := regOK.Load()
	regOK.Store(false)
	t.Cleanup(func() { regOK.Store(prev) })

	before := testutil.ToFloat64(logsEvicted)
	assert.NotPanics(t, func() {
		IncLogAppended("info")
		IncLogEvicted()
		IncStateSet()
		IncChat("disabled")
		ObserveChat("ok", 1.0)
		IncSync("sent")
		IncSpawn("not_found")
		SetMonitorRunning(false)
		RecordStateTransition("a", "b")
	})
	assert.Equal(t, before, testutil.ToFloat64(logsEvicted))
}

type failingRegisterer struct{}

func (failingRegisterer) Register(prometheus.Collector) error  { return errors.New("registration refused") }
func (failingRegisterer) MustRegister(...prometheus.Collector) {}
func (failingRegisterer) Unregister(prometheus.Collector) bool { return false }

func TestRegisterErrorKeepsGateClosed(t *testing.T) {
	prev := regOK.Load()
	regOK.Store(false)
	t.Cleanup(func() { regOK.Store(prev) })

	err := Register(failingRegisterer{})
	require.EqualError(t, err, "registration refused")
	assert.False(t, regOK.Load())
}
