package watch

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stellar/go/support/errors"
	"github.com/stellar/go/support/log"

	"github.com/saif727/hedera-wallet-backend/metrics"
	"github.com/saif727/hedera-wallet-backend/models"
)

// DefaultRefreshInterval is how often an active poller refreshes the account
const DefaultRefreshInterval = 30 * time.Second

// ErrNotActive is returned by Refresh when no account is being watched
var ErrNotActive = errors.New("no account is being watched")

// AccountFetcher reads an account's balance and token holdings
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, accountID string) (*models.AccountSnapshot, error)
}

// PollerConfig holds the poller dependencies
type PollerConfig struct {
	Fetcher  AccountFetcher
	Interval time.Duration
	Clock    clock.Clock
	Alerts   Notifier
	Metrics  *metrics.Recorder
	Log      *log.Entry
}

// AccountPoller refreshes the snapshot of one account on a fixed interval
// while it is active.
type AccountPoller struct {
	config PollerConfig

	// swap serializes activation changes so at most one loop runs
	swap sync.Mutex

	mu          sync.Mutex
	accountID   string
	generation  uint64
	snapshot    *models.AccountSnapshot
	lastRefresh time.Time
	lastErr     error
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewAccountPoller creates an inactive poller
func NewAccountPoller(config PollerConfig) *AccountPoller {
	if config.Interval <= 0 {
		config.Interval = DefaultRefreshInterval
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Log == nil {
		config.Log = log.DefaultLogger
	}
	config.Log = config.Log.WithField("component", "poller")
	return &AccountPoller{config: config}
}

// Activate starts watching accountID: one fetch right away, then one per
// interval. A previous activation is cancelled first.
func (p *AccountPoller) Activate(accountID string) {
	p.swap.Lock()
	defer p.swap.Unlock()
	p.deactivate()

	ctx, cancel := context.WithCancel(context.Background())
	ticker := p.config.Clock.Ticker(p.config.Interval)
	done := make(chan struct{})

	p.mu.Lock()
	p.generation++
	gen := p.generation
	if p.accountID != accountID {
		p.snapshot = nil
		p.lastRefresh = time.Time{}
	}
	p.accountID = accountID
	p.lastErr = nil
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.config.Log.WithField("account", accountID).Info("account polling started")
	go p.loop(ctx, gen, accountID, ticker, done)
}

// Deactivate stops polling and waits for the loop to exit. It is safe to call
// when the poller is not active.
func (p *AccountPoller) Deactivate() {
	p.swap.Lock()
	defer p.swap.Unlock()
	p.deactivate()
}

func (p *AccountPoller) deactivate() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.generation++
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.config.Log.Debug("account polling stopped")
}

// Stop deactivates the poller and forgets the watched account
func (p *AccountPoller) Stop() {
	p.swap.Lock()
	defer p.swap.Unlock()
	p.deactivate()
	p.mu.Lock()
	p.accountID = ""
	p.snapshot = nil
	p.lastRefresh = time.Time{}
	p.lastErr = nil
	p.mu.Unlock()
}

func (p *AccountPoller) loop(ctx context.Context, gen uint64, accountID string, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	p.background(ctx, gen, accountID)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.background(ctx, gen, accountID)
		}
	}
}

// background fetches without surfacing failures to the user.
func (p *AccountPoller) background(ctx context.Context, gen uint64, accountID string) {
	snapshot, err := p.config.Fetcher.GetAccountInfo(ctx, accountID)
	if ctx.Err() != nil {
		return
	}
	p.config.Metrics.ObserveRefresh("background", err == nil)
	if err != nil {
		p.config.Log.WithFields(log.F{"account": accountID, "err": err}).Warn("background refresh failed")
	}
	p.store(gen, snapshot, err)
}

// Refresh fetches the watched account now. Failures are returned and alerted.
func (p *AccountPoller) Refresh(ctx context.Context) (*models.AccountSnapshot, error) {
	p.mu.Lock()
	accountID, gen := p.accountID, p.generation
	p.mu.Unlock()
	if accountID == "" {
		return nil, ErrNotActive
	}

	snapshot, err := p.config.Fetcher.GetAccountInfo(ctx, accountID)
	p.config.Metrics.ObserveRefresh("manual", err == nil)
	p.store(gen, snapshot, err)
	if err != nil {
		if p.config.Alerts != nil {
			p.config.Alerts.Alert("Failed to refresh account", err)
		}
		return nil, err
	}
	return snapshot, nil
}

// store keeps the result unless the poller moved on to another activation.
func (p *AccountPoller) store(gen uint64, snapshot *models.AccountSnapshot, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return
	}
	p.lastErr = err
	if err == nil {
		p.snapshot = snapshot
		p.lastRefresh = p.config.Clock.Now()
	}
}

// AccountID returns the watched account, or "" when none
func (p *AccountPoller) AccountID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accountID
}

// Active reports whether the refresh loop is running
func (p *AccountPoller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Snapshot returns the last successful snapshot and when it was taken
func (p *AccountPoller) Snapshot() (*models.AccountSnapshot, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot, p.lastRefresh
}

// LastError returns the error of the latest refresh, or nil if it succeeded
func (p *AccountPoller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
