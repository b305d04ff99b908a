package memnet

import (
	"sync"

	"github.com/saif727/hedera-wallet-backend/models"
)

// subscriber delivers queued messages to one stream consumer in order.
type subscriber struct {
	queue     chan models.TopicMessage
	quit      chan struct{}
	once      sync.Once
	onMessage func(models.TopicMessage)
	onError   func(error)

	mu  sync.Mutex
	err error
}

func newSubscriber(size int, onMessage func(models.TopicMessage), onError func(error)) *subscriber {
	return &subscriber{
		queue:     make(chan models.TopicMessage, size),
		quit:      make(chan struct{}),
		onMessage: onMessage,
		onError:   onError,
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.quit:
			s.mu.Lock()
			err := s.err
			s.mu.Unlock()
			if err != nil && s.onError != nil {
				s.onError(err)
			}
			return
		case m := <-s.queue:
			select {
			case <-s.quit:
				continue
			default:
			}
			s.onMessage(m)
		}
	}
}

// publish queues m without blocking the publisher. Callers hold the network lock.
func (s *subscriber) publish(m models.TopicMessage) bool {
	select {
	case s.queue <- m:
		return true
	default:
		return false
	}
}

func (s *subscriber) fail(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.quit)
	})
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.quit) })
}
