package notify

import (
	"context"
	"sync"

	id "propbridge/pkg/domain"
)

// RecordingSender captures deliveries for assertions in tests.
type RecordingSender struct {
	mu   sync.Mutex
	sent []Notification
	// FailKinds lists kinds whose deliveries should error.
	FailKinds map[Kind]error
}

func NewRecordingSender() *RecordingSender {
	return &RecordingSender{}
}

func (s *RecordingSender) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailKinds[n.Kind]; ok {
		return err
	}
	s.sent = append(s.sent, n)
	return nil
}

// Sent returns a snapshot of successful deliveries.
func (s *RecordingSender) Sent() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.sent...)
}

// SentTo returns successful deliveries for one recipient.
func (s *RecordingSender) SentTo(recipient id.UserID) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []Notification
	for _, n := range s.sent {
		if n.Recipient == recipient {
			result = append(result, n)
		}
	}
	return result
}

// SyncDispatcher delivers inline; unit tests use it to assert on
// notifications without goroutine scheduling.
type SyncDispatcher struct {
	Sender Sender
}

func (d SyncDispatcher) Dispatch(ctx context.Context, n Notification) {
	_ = d.Sender.Send(ctx, n)
}
