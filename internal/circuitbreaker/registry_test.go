package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil, nil)

	cb := r.Register("auth-service")
	require.NotNil(t, cb)
	assert.Equal(t, "auth-service", cb.Name())

	assert.Same(t, cb, r.Get("auth-service"))
	assert.Nil(t, r.Get("unknown-service"))
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry(nil, nil)

	first := r.Register("parent-service")
	second := r.Register("parent-service")

	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryRegisterWithConfig(t *testing.T) {
	r := NewRegistry(nil, nil)

	custom := &Config{
		FailureRateThreshold: 0.9,
		WindowSize:           20,
		MinCalls:             10,
		OpenStateWait:        time.Minute,
		HalfOpenMaxCalls:     1,
		SuccessThreshold:     1,
	}
	cb := r.RegisterWithConfig("chat-service", custom)
	require.NotNil(t, cb)

	// A custom breaker with MinCalls=10 must not open after 5 failures.
	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestRegistryNamesAndList(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.Register("auth-service")
	r.Register("game-service")

	assert.ElementsMatch(t, []string{"auth-service", "game-service"}, r.Names())
	assert.Len(t, r.List(), 2)
}

func TestRegistryStats(t *testing.T) {
	r := NewRegistry(nil, nil)
	cb := r.Register("school-service")

	reportSuccess(t, cb)
	reportFailure(t, cb)

	stats := r.Stats()
	require.Contains(t, stats, "school-service")
	assert.Equal(t, 2, stats["school-service"].Recorded)
	assert.Equal(t, 1, stats["school-service"].Failures)
	assert.Equal(t, "closed", stats["school-service"].State)
}

func TestRegistryResetAll(t *testing.T) {
	r := NewRegistry(nil, nil)
	cb := r.Register("doctor-service")

	for i := 0; i < 5; i++ {
		reportFailure(t, cb)
	}
	require.Equal(t, StateOpen, cb.State())

	r.ResetAll()
	assert.Equal(t, StateClosed, cb.State())
}
