package services

import (
	"context"
	"errors"
	"sync"

	"github.com/saif727/hedera-wallet-backend/models"
)

// ErrSubscriptionClosed is returned by Next after Stop
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscription is a live stream of messages published to one topic. Messages
// arrive in consensus order. Stop is safe to call any number of times.
type Subscription struct {
	TopicID string

	msgs    chan models.TopicMessage
	done    chan struct{}
	once    sync.Once
	cancel  func()
	onClose func()

	mu  sync.Mutex
	err error
}

func newSubscription(topicID string, onClose func()) *Subscription {
	return &Subscription{
		TopicID: topicID,
		msgs:    make(chan models.TopicMessage),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// deliver hands m to the consumer, blocking until it is taken or the
// subscription ends.
func (s *Subscription) deliver(m models.TopicMessage) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.msgs <- m:
	case <-s.done:
	}
}

// Messages returns the channel messages are delivered on. Select on Done as well.
func (s *Subscription) Messages() <-chan models.TopicMessage { return s.msgs }

// Done is closed when the subscription ends, by Stop or by a stream failure.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the stream failure, or nil if the subscription is open or was stopped.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Next blocks until the next message arrives, the subscription ends, or ctx is done.
func (s *Subscription) Next(ctx context.Context) (models.TopicMessage, error) {
	select {
	case <-s.done:
		return models.TopicMessage{}, s.closedErr()
	default:
	}
	select {
	case m := <-s.msgs:
		return m, nil
	case <-s.done:
		return models.TopicMessage{}, s.closedErr()
	case <-ctx.Done():
		return models.TopicMessage{}, ctx.Err()
	}
}

func (s *Subscription) closedErr() error {
	if err := s.Err(); err != nil {
		return err
	}
	return ErrSubscriptionClosed
}

// Stop ends the stream and releases it. Later calls do nothing.
func (s *Subscription) Stop() {
	s.close(nil)
}

// fail ends the stream with err. Only the first of fail/Stop takes effect.
func (s *Subscription) fail(err error) {
	s.close(err)
}

func (s *Subscription) close(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		close(s.done)
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// attach installs the stream's cancel func; if the subscription already ended
// the stream is cancelled right away.
func (s *Subscription) attach(cancel func()) {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		cancel()
		return
	default:
	}
	s.cancel = cancel
	s.mu.Unlock()
}
