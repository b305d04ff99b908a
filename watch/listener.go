package watch

import (
	"strings"
	"sync"

	"github.com/stellar/go/support/errors"
	"github.com/stellar/go/support/log"

	"github.com/saif727/hedera-wallet-backend/models"
	"github.com/saif727/hedera-wallet-backend/services"
)

const maxCollectedMessages = 1000

// ErrTopicRequired is returned by Toggle without a topic id
var ErrTopicRequired = errors.New("please enter a topic id")

// TopicSubscriber opens live topic streams
type TopicSubscriber interface {
	SubscribeToTopic(topicID string) (*services.Subscription, error)
}

// TopicListener collects the messages of one live topic stream. Collected
// messages are kept when the stream stops.
type TopicListener struct {
	subscriber TopicSubscriber
	alerts     Notifier
	log        *log.Entry

	mu       sync.Mutex
	topicID  string
	sub      *services.Subscription
	messages []models.TopicMessage
}

// NewTopicListener creates an inactive listener
func NewTopicListener(subscriber TopicSubscriber, alerts Notifier, logger *log.Entry) *TopicListener {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &TopicListener{
		subscriber: subscriber,
		alerts:     alerts,
		log:        logger.WithField("component", "listener"),
	}
}

// Toggle starts listening to topicID when inactive and stops when active.
// It returns whether the listener is active afterwards.
func (l *TopicListener) Toggle(topicID string) (bool, error) {
	l.mu.Lock()
	if l.sub != nil {
		sub := l.sub
		l.sub = nil
		l.mu.Unlock()
		sub.Stop()
		l.log.WithField("topic", sub.TopicID).Info("stopped listening")
		return false, nil
	}
	defer l.mu.Unlock()

	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return false, ErrTopicRequired
	}
	sub, err := l.subscriber.SubscribeToTopic(topicID)
	if err != nil {
		return false, err
	}
	l.sub = sub
	l.topicID = topicID
	go l.collect(sub)
	l.log.WithField("topic", topicID).Info("listening for topic messages")
	return true, nil
}

func (l *TopicListener) collect(sub *services.Subscription) {
	for {
		select {
		case m := <-sub.Messages():
			l.mu.Lock()
			l.messages = append(l.messages, m)
			if over := len(l.messages) - maxCollectedMessages; over > 0 {
				l.messages = append([]models.TopicMessage(nil), l.messages[over:]...)
			}
			l.mu.Unlock()
		case <-sub.Done():
			err := sub.Err()
			if err == nil {
				return
			}
			l.mu.Lock()
			if l.sub == sub {
				l.sub = nil
			}
			l.mu.Unlock()
			if l.alerts != nil {
				l.alerts.Alert("Subscription Error", err)
			}
			return
		}
	}
}

// Active reports whether a stream is open
func (l *TopicListener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub != nil
}

// TopicID returns the topic last listened to
func (l *TopicListener) TopicID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.topicID
}

// Messages returns a copy of the collected messages in arrival order
func (l *TopicListener) Messages() []models.TopicMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.TopicMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Close stops the stream, if any
func (l *TopicListener) Close() {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()
	if sub != nil {
		sub.Stop()
	}
}
