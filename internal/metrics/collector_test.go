package metrics

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type countingProvider struct {
	calls atomic.Int32
	stats Stats
	err   error
}

func (p *countingProvider) GetStats() (Stats, error) {
	p.calls.Add(1)
	return p.stats, p.err
}

func TestCollectorCollectUpdatesGauges(t *testing.T) {
	provider := &countingProvider{stats: Stats{
		Users:          3,
		Titles:         7,
		Items:          120,
		Thumbnails:     42,
		PendingEntries: 5,
	}}

	c := NewCollector(provider, time.Hour)
	c.collect()

	checks := map[string]float64{
		"users":      3,
		"titles":     7,
		"items":      120,
		"thumbnails": 42,
	}
	for relation, want := range checks {
		if got := testutil.ToFloat64(StoredRows.WithLabelValues(relation)); got != want {
			t.Errorf("StoredRows[%s] = %v, want %v", relation, got, want)
		}
	}
	if got := testutil.ToFloat64(RegistryPendingEntries); got != 5 {
		t.Errorf("RegistryPendingEntries = %v, want 5", got)
	}
}

func TestCollectorKeepsGaugesOnError(t *testing.T) {
	good := &countingProvider{stats: Stats{Users: 9}}
	NewCollector(good, time.Hour).collect()

	bad := &countingProvider{err: errors.New("database is closed")}
	NewCollector(bad, time.Hour).collect()

	if got := testutil.ToFloat64(StoredRows.WithLabelValues("users")); got != 9 {
		t.Errorf("StoredRows[users] = %v, want 9 (unchanged after error)", got)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.collect() // must not panic
}

func TestCollectorStartStop(t *testing.T) {
	provider := &countingProvider{}
	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(2 * time.Second)
	for provider.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if provider.calls.Load() < 2 {
		t.Errorf("collector ran %d times, want at least 2", provider.calls.Load())
	}
}

func TestStatsFunc(t *testing.T) {
	var p StatsProvider = StatsFunc(func() (Stats, error) {
		return Stats{Items: 1}, nil
	})
	stats, err := p.GetStats()
	if err != nil || stats.Items != 1 {
		t.Errorf("StatsFunc.GetStats() = (%+v, %v)", stats, err)
	}
}
