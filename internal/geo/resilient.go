package geo

import (
	"context"
	"log/slog"
	"sync/atomic"

	"propbridge/pkg/platform/circuit"
)

// probeEvery is how many skipped lookups pass between probes of an open
// circuit.
const probeEvery = 10

// ResilientNormalizer guards a Normalizer with a circuit breaker. While the
// circuit is open lookups resolve to nil coordinates without touching the
// geocoder, except for an occasional probe; enough successful probes close
// the circuit again. Coordinates are optional, so degrading beats blocking
// requirement writes on a flapping dependency.
type ResilientNormalizer struct {
	next    Normalizer
	breaker *circuit.Breaker
	logger  *slog.Logger
	skipped atomic.Int64
}

func NewResilient(next Normalizer, logger *slog.Logger) *ResilientNormalizer {
	return &ResilientNormalizer{
		next: next,
		breaker: circuit.New("geocoder",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(2),
		),
		logger: logger,
	}
}

func (n *ResilientNormalizer) Normalize(ctx context.Context, locationText string) (*Coordinates, error) {
	if n.breaker.IsOpen() {
		if n.skipped.Add(1)%probeEvery != 0 {
			return nil, nil
		}
		coords, err := n.next.Normalize(ctx, locationText)
		if err != nil {
			n.breaker.RecordFailure()
			return nil, nil
		}
		if _, change := n.breaker.RecordSuccess(); change.Closed {
			n.logger.InfoContext(ctx, "geocoder circuit closed")
		}
		return coords, nil
	}

	coords, err := n.next.Normalize(ctx, locationText)
	if err != nil {
		if _, change := n.breaker.RecordFailure(); change.Opened {
			n.logger.WarnContext(ctx, "geocoder circuit opened", "error", err)
		}
		return nil, err
	}
	n.breaker.RecordSuccess()
	return coords, nil
}
