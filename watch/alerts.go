// Package watch keeps the wallet view current: it polls the account balance
// and collects live topic messages.
package watch

import (
	"sync"
	"time"

	"github.com/stellar/go/support/log"
)

const defaultAlertCapacity = 50

// Alert is a user visible notification
type Alert struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier receives failures that the user has to be told about
type Notifier interface {
	Alert(title string, err error)
}

// AlertFeed is a bounded list of recent alerts, newest last
type AlertFeed struct {
	mu       sync.Mutex
	capacity int
	alerts   []Alert
	now      func() time.Time
	log      *log.Entry
}

// NewAlertFeed creates a feed keeping at most capacity alerts
func NewAlertFeed(capacity int, logger *log.Entry) *AlertFeed {
	if capacity <= 0 {
		capacity = defaultAlertCapacity
	}
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &AlertFeed{capacity: capacity, now: time.Now, log: logger.WithField("component", "alerts")}
}

// Alert records a failure
func (f *AlertFeed) Alert(title string, err error) {
	a := Alert{Title: title, Time: f.now()}
	if err != nil {
		a.Message = err.Error()
	}
	f.log.WithFields(log.F{"title": title, "message": a.Message}).Warn("alert")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	if over := len(f.alerts) - f.capacity; over > 0 {
		f.alerts = append([]Alert(nil), f.alerts[over:]...)
	}
}

// Recent returns a copy of the kept alerts
func (f *AlertFeed) Recent() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Alert, len(f.alerts))
	copy(out, f.alerts)
	return out
}
