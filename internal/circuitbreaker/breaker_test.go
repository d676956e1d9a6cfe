package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *Config {
	return &Config{
		FailureRateThreshold: 0.5,
		WindowSize:           10,
		MinCalls:             5,
		OpenStateWait:        30 * time.Second,
		HalfOpenMaxCalls:     3,
		SuccessThreshold:     3,
	}
}

func newTestBreaker(t *testing.T) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cb := NewCircuitBreaker("test", testConfig(), nil, WithClock(clock.Now))
	return cb, clock
}

// admit asserts the breaker accepts the call and returns its outcome
// report.
func admit(t *testing.T, cb *CircuitBreaker) Outcome {
	t.Helper()
	done, err := cb.Allow()
	require.NoError(t, err)
	return done
}

func reportSuccess(t *testing.T, cb *CircuitBreaker) {
	t.Helper()
	admit(t, cb)(true)
}

func reportFailure(t *testing.T, cb *CircuitBreaker) {
	t.Helper()
	admit(t, cb)(false)
}

func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(t)

	assert.Equal(t, StateClosed, cb.State())
	_, err := cb.Allow()
	assert.NoError(t, err)
}

func TestCircuitBreakerOpensOnFailureRate(t *testing.T) {
	cb, _ := newTestBreaker(t)

	// Four failures is below the minimum call count.
	for i := 0; i < 4; i++ {
		reportFailure(t, cb)
	}
	assert.Equal(t, StateClosed, cb.State())

	// The fifth reaches MinCalls with a 100% failure rate.
	reportFailure(t, cb)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerStaysClosedBelowThreshold(t *testing.T) {
	cb, _ := newTestBreaker(t)

	// 4 failures out of 10 is a 40% failure rate, under the 50% threshold.
	for i := 0; i < 6; i++ {
		reportSuccess(t, cb)
	}
	for i := 0; i < 4; i++ {
		reportFailure(t, cb)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerRollingWindowEvictsOldest(t *testing.T) {
	cb, _ := newTestBreaker(t)

	// Fill the window with successes, then push failures. Each failure
	// evicts one old success, so after 5 failures the window holds
	// 5 failures and 5 successes, exactly at the 50% threshold.
	for i := 0; i < 10; i++ {
		reportSuccess(t, cb)
	}
	for i := 0; i < 4; i++ {
		reportFailure(t, cb)
	}
	assert.Equal(t, StateClosed, cb.State())

	reportFailure(t, cb)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerShortCircuitsWhileOpen(t *testing.T) {
	cb, clock := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(29 * time.Second)

	called := false
	err := cb.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open circuit must not invoke the call")
}

func TestCircuitBreakerHalfOpenAfterWait(t *testing.T) {
	cb, clock := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(30 * time.Second)

	_, err := cb.Allow()
	assert.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreakerHalfOpenProbeCap(t *testing.T) {
	cb, clock := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	clock.Advance(30 * time.Second)

	// The call that flips the circuit to half-open counts as the first
	// probe. Two more fit under HalfOpenMaxCalls=3.
	first := admit(t, cb)
	admit(t, cb)
	admit(t, cb)

	_, err := cb.Allow()
	assert.ErrorIs(t, err, ErrTooManyRequests)

	// A finished probe frees a slot.
	first(true)
	_, err = cb.Allow()
	assert.NoError(t, err)
}

func TestCircuitBreakerClosesAfterConsecutiveProbeSuccesses(t *testing.T) {
	cb, clock := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	clock.Advance(30 * time.Second)

	for i := 0; i < 3; i++ {
		admit(t, cb)(true)
	}

	assert.Equal(t, StateClosed, cb.State())

	// The window restarts empty after recovery.
	stats := cb.Stats()
	assert.Equal(t, 0, stats.Recorded)
	assert.Equal(t, 0, stats.Failures)
}

func TestCircuitBreakerProbeFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	clock.Advance(30 * time.Second)

	admit(t, cb)(true)
	admit(t, cb)(false)

	assert.Equal(t, StateOpen, cb.State())

	// The wait restarts from the probe failure.
	clock.Advance(29 * time.Second)
	_, err := cb.Allow()
	assert.ErrorIs(t, err, ErrCircuitOpen)

	clock.Advance(1 * time.Second)
	_, err = cb.Allow()
	assert.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreakerIgnoresStragglerOutcomes(t *testing.T) {
	cb, clock := newTestBreaker(t)

	// Admit a batch of calls while closed and hold their reports back.
	var stragglers []Outcome
	for i := 0; i < 8; i++ {
		stragglers = append(stragglers, admit(t, cb))
	}

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(31 * time.Second)
	probe := admit(t, cb)
	require.Equal(t, StateHalfOpen, cb.State())

	// Late successes from the closed era must not count as probe
	// successes or free probe budget.
	for _, done := range stragglers[:3] {
		done(true)
	}
	assert.Equal(t, StateHalfOpen, cb.State())

	admit(t, cb)
	admit(t, cb)
	_, err := cb.Allow()
	assert.ErrorIs(t, err, ErrTooManyRequests,
		"straggler successes must not free probe slots")

	// A late failure from the closed era must not reopen the circuit.
	stragglers[3](false)
	assert.Equal(t, StateHalfOpen, cb.State())

	// Real probes still drive recovery.
	probe(true)
	admit(t, cb)(true)
	admit(t, cb)(true)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresStragglerAfterReopen(t *testing.T) {
	cb, clock := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	clock.Advance(30 * time.Second)

	probe := admit(t, cb)
	admit(t, cb)(false)
	require.Equal(t, StateOpen, cb.State())

	// The first probe finished after the reopen; its report must not
	// touch the restarted wait or the fresh window.
	probe(true)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 0, cb.Stats().Recorded)
}

func TestCircuitBreakerExecuteRecordsOutcomes(t *testing.T) {
	cb, _ := newTestBreaker(t)

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		err := cb.Execute(context.Background(), func() error { return boom })
		require.ErrorIs(t, err, boom)
	}

	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerExecuteWithFallback(t *testing.T) {
	cb, _ := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	require.Equal(t, StateOpen, cb.State())

	fallbackCalled := false
	err := cb.ExecuteWithFallback(context.Background(),
		func() error { return nil },
		func(err error) error {
			fallbackCalled = true
			assert.ErrorIs(t, err, ErrCircuitOpen)
			return nil
		},
	)
	assert.NoError(t, err)
	assert.True(t, fallbackCalled)
}

func TestCircuitBreakerExecuteWithFallbackPassesThroughCallErrors(t *testing.T) {
	cb, _ := newTestBreaker(t)

	boom := errors.New("boom")
	err := cb.ExecuteWithFallback(context.Background(),
		func() error { return boom },
		func(error) error { return nil },
	)
	assert.ErrorIs(t, err, boom)
}

func TestCircuitBreakerIsSuccessfulOverride(t *testing.T) {
	cfg := testConfig()
	cfg.IsSuccessful = func(err error) bool {
		return true
	}
	cb := NewCircuitBreaker("lenient", cfg, nil)

	boom := errors.New("boom")
	for i := 0; i < 10; i++ {
		_ = cb.Execute(context.Background(), func() error { return boom })
	}

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerOnStateChange(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
	)
	done := make(chan struct{}, 1)

	cfg := testConfig()
	cfg.OnStateChange = func(name string, from, to State) {
		mu.Lock()
		transitions = append(transitions, from.String()+"->"+to.String())
		mu.Unlock()
		done <- struct{}{}
	}
	cb := NewCircuitBreaker("watched", cfg, nil)

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("state change callback not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestCircuitBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	_, err := cb.Allow()
	assert.NoError(t, err)
}

func TestCircuitBreakerConcurrentOutcomes(t *testing.T) {
	cb, _ := newTestBreaker(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			done, err := cb.Allow()
			if err != nil {
				return
			}
			done(!fail)
		}(i%2 == 0)
	}
	wg.Wait()

	stats := cb.Stats()
	assert.LessOrEqual(t, stats.Recorded, 10)
	assert.LessOrEqual(t, stats.Failures, stats.Recorded)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(*Config) {}},
		{name: "zero threshold", mutate: func(c *Config) { c.FailureRateThreshold = 0 }, wantErr: true},
		{name: "threshold above one", mutate: func(c *Config) { c.FailureRateThreshold = 1.5 }, wantErr: true},
		{name: "threshold of one", mutate: func(c *Config) { c.FailureRateThreshold = 1 }},
		{name: "zero window", mutate: func(c *Config) { c.WindowSize = 0 }, wantErr: true},
		{name: "zero min calls", mutate: func(c *Config) { c.MinCalls = 0 }, wantErr: true},
		{name: "min calls above window", mutate: func(c *Config) { c.MinCalls = 11 }, wantErr: true},
		{name: "zero wait", mutate: func(c *Config) { c.OpenStateWait = 0 }, wantErr: true},
		{name: "zero half-open max", mutate: func(c *Config) { c.HalfOpenMaxCalls = 0 }, wantErr: true},
		{name: "zero success threshold", mutate: func(c *Config) { c.SuccessThreshold = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
