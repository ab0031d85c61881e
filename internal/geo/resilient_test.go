package geo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyNormalizer struct {
	calls int
	fail  bool
}

func (f *flakyNormalizer) Normalize(context.Context, string) (*Coordinates, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("upstream timeout")
	}
	return &Coordinates{Lat: 18.5, Lng: 73.8}, nil
}

func TestResilientNormalizerOpensAndSkips(t *testing.T) {
	inner := &flakyNormalizer{fail: true}
	n := NewResilient(inner, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	// Errors surface until the circuit opens.
	for i := 0; i < 5; i++ {
		_, err := n.Normalize(ctx, "Pune")
		require.Error(t, err)
	}
	callsAtOpen := inner.calls

	// Open circuit: lookups degrade to nil without hitting the geocoder,
	// except the occasional probe.
	for i := 0; i < probeEvery-1; i++ {
		coords, err := n.Normalize(ctx, "Pune")
		assert.Nil(t, coords)
		assert.NoError(t, err)
	}
	assert.Equal(t, callsAtOpen, inner.calls)

	// The probe goes through and, still failing, is swallowed.
	coords, err := n.Normalize(ctx, "Pune")
	assert.Nil(t, coords)
	assert.NoError(t, err)
	assert.Equal(t, callsAtOpen+1, inner.calls)
}

func TestResilientNormalizerClosesAfterProbes(t *testing.T) {
	inner := &flakyNormalizer{fail: true}
	n := NewResilient(inner, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = n.Normalize(ctx, "Pune")
	}
	inner.fail = false

	// Two successful probes close the circuit.
	for i := 0; i < 2*probeEvery; i++ {
		_, _ = n.Normalize(ctx, "Pune")
	}

	coords, err := n.Normalize(ctx, "Pune")
	require.NoError(t, err)
	require.NotNil(t, coords)
	assert.InDelta(t, 18.5, coords.Lat, 0.001)
}
