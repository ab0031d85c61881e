package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := New("geocoder")
	assert.Equal(t, "geocoder", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.False(t, b.IsOpen())
}

func TestBreakerOpensAtFailureThreshold(t *testing.T) {
	b := New("geocoder", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)
	}

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	// Further failures keep it open without another transition.
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened)
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	b := New("geocoder", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	assert.True(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreakerCountersResetEachOther(t *testing.T) {
	t.Run("success clears the failure streak", func(t *testing.T) {
		b := New("geocoder", WithFailureThreshold(3))
		b.RecordFailure()
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordFailure()
		assert.False(t, b.IsOpen())
		b.RecordFailure()
		assert.True(t, b.IsOpen())
	})

	t.Run("failure clears the success streak", func(t *testing.T) {
		b := New("geocoder", WithFailureThreshold(1), WithSuccessThreshold(3))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordSuccess()
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordSuccess()
		assert.True(t, b.IsOpen())
		b.RecordSuccess()
		assert.False(t, b.IsOpen())
	})
}

func TestBreakerReset(t *testing.T) {
	b := New("geocoder", WithFailureThreshold(1))
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}
