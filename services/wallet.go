package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/support/log"

	"github.com/saif727/hedera-wallet-backend/ledger"
	"github.com/saif727/hedera-wallet-backend/metrics"
	"github.com/saif727/hedera-wallet-backend/models"
)

// CredentialStore persists the operator credentials between runs
type CredentialStore interface {
	Save(creds models.Credentials) error
	// Load returns nil, nil when nothing is stored.
	Load() (*models.Credentials, error)
	Clear() error
}

// Config holds the service dependencies
type Config struct {
	Network ledger.Network
	Store   CredentialStore
	Metrics *metrics.Recorder
	Log     *log.Entry
}

// WalletService provides methods for wallet operations
type WalletService struct {
	Config Config

	mu      sync.RWMutex
	current *session
}

// NewWalletService creates a new WalletService instance
func NewWalletService(config Config) *WalletService {
	if config.Log == nil {
		config.Log = log.DefaultLogger
	}
	config.Log = config.Log.WithField("service", "wallet")
	return &WalletService{Config: config}
}

// SetOperator validates the credentials and installs them as the operator.
// On failure the previous operator stays installed.
func (s *WalletService) SetOperator(accountID, privateKey string) error {
	sess, err := s.bind(accountID, privateKey)
	if err != nil {
		return err
	}
	s.install(sess)
	return nil
}

// Connect installs the operator and persists the credentials
func (s *WalletService) Connect(accountID, privateKey string) error {
	sess, err := s.bind(accountID, privateKey)
	if err != nil {
		return err
	}
	if s.Config.Store != nil {
		creds := models.Credentials{AccountID: sess.op.AccountID(), PrivateKey: strings.TrimSpace(privateKey)}
		if err := s.Config.Store.Save(creds); err != nil {
			_ = sess.op.Close()
			return newError(ErrStorageFailed, "Failed to store credentials", err)
		}
	}
	s.install(sess)
	s.Config.Log.WithField("operator", sess.op.AccountID()).Info("wallet connected")
	return nil
}

// Disconnect removes the stored credentials and then the operator. When the
// credentials cannot be removed the operator stays installed.
func (s *WalletService) Disconnect() error {
	if s.Config.Store != nil {
		if err := s.Config.Store.Clear(); err != nil {
			return newError(ErrStorageFailed, "Failed to remove stored credentials", err)
		}
	}
	s.install(nil)
	s.Config.Log.Info("wallet disconnected")
	return nil
}

// Close retires the installed operator without touching the stored
// credentials. The operator client is closed once in-flight operations finish.
func (s *WalletService) Close() {
	s.install(nil)
}

// Restore installs the stored credentials, if any. It reports whether an
// operator was restored.
func (s *WalletService) Restore() (bool, error) {
	if s.Config.Store == nil {
		return false, nil
	}
	creds, err := s.Config.Store.Load()
	if err != nil {
		return false, newError(ErrStorageFailed, "Failed to load stored credentials", err)
	}
	if creds == nil {
		return false, nil
	}
	if err := s.SetOperator(creds.AccountID, creds.PrivateKey); err != nil {
		return false, err
	}
	s.Config.Log.WithField("operator", creds.AccountID).Info("wallet session restored")
	return true, nil
}

// IsConnected reports whether an operator is installed
func (s *WalletService) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// OperatorAccountID returns the installed operator's account id, or "" when disconnected
func (s *WalletService) OperatorAccountID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.op.AccountID()
}

// NetworkName returns the name of the ledger network
func (s *WalletService) NetworkName() string {
	return s.Config.Network.Name()
}

func (s *WalletService) bind(accountID, privateKey string) (*session, error) {
	accountID = strings.TrimSpace(accountID)
	privateKey = strings.TrimSpace(privateKey)
	if accountID == "" || privateKey == "" {
		return nil, newError(ErrInvalidCredentials, "Invalid credentials: account id and private key are required", nil)
	}
	op, err := s.Config.Network.Bind(accountID, privateKey)
	if err != nil {
		return nil, newError(ErrInvalidCredentials, "Invalid credentials", err)
	}
	return &session{op: op}, nil
}

func (s *WalletService) install(next *session) {
	s.mu.Lock()
	prev := s.current
	s.current = next
	s.mu.Unlock()
	if prev != nil {
		prev.retire(s.Config.Log)
	}
}

// acquire pins the current session for one operation. Release it with inflight.Done.
func (s *WalletService) acquire() *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	s.current.inflight.Add(1)
	return s.current
}

// GetAccountInfo retrieves the hbar balance and token holdings of an account
func (s *WalletService) GetAccountInfo(ctx context.Context, accountID string) (*models.AccountSnapshot, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, newError(ErrInvalidInput, "account id is required", nil)
	}
	start := time.Now()
	snapshot, err := s.Config.Network.AccountInfo(ctx, accountID)
	s.Config.Metrics.ObserveOperation("account_info", err == nil, time.Since(start))
	if err != nil {
		return nil, newError(ErrQueryFailed, "Failed to get account info", err)
	}
	return snapshot, nil
}

// GetTopicMessages reads the messages of a topic published at or after since.
// A zero since reads from the beginning.
func (s *WalletService) GetTopicMessages(ctx context.Context, topicID string, since time.Time) ([]models.TopicMessage, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return nil, newError(ErrInvalidInput, "topic id is required", nil)
	}
	start := time.Now()
	messages, err := s.Config.Network.TopicMessages(ctx, topicID, since)
	s.Config.Metrics.ObserveOperation("topic_messages", err == nil, time.Since(start))
	if err != nil {
		return nil, newError(ErrQueryFailed, "Failed to retrieve topic messages", err)
	}
	return messages, nil
}

// SubscribeToTopic opens a live stream of messages published from now on
func (s *WalletService) SubscribeToTopic(topicID string) (*Subscription, error) {
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return nil, newError(ErrInvalidInput, "topic id is required", nil)
	}

	s.Config.Metrics.SubscriptionOpened()
	sub := newSubscription(topicID, s.Config.Metrics.SubscriptionClosed)
	logger := s.Config.Log.WithField("topic", topicID)

	cancel, err := s.Config.Network.SubscribeTopic(topicID, time.Now(), sub.deliver, func(err error) {
		logger.WithField("err", err).Warn("topic stream failed")
		sub.fail(newError(ErrSubscriptionFailed, "Topic stream failed", err))
	})
	if err != nil {
		s.Config.Metrics.SubscriptionClosed()
		return nil, newError(ErrSubscriptionFailed, "Failed to subscribe to topic", err)
	}
	sub.attach(cancel)
	logger.Debug("topic subscription opened")
	return sub, nil
}

// SendHbar transfers hbar from the operator to another account
func (s *WalletService) SendHbar(ctx context.Context, toAccountID string, amount decimal.Decimal) *models.TransactionOutcome {
	const failure = "Transfer failed"
	tinybars, err := ToTinybars(amount)
	if err != nil {
		return failed(newError(ErrInvalidInput, failure, err))
	}
	return s.submit(ctx, "hbar_transfer", failure, func(op ledger.Operator) (*ledger.Receipt, error) {
		return op.TransferHbar(ctx, strings.TrimSpace(toAccountID), tinybars)
	})
}

// SendToken transfers amount of a token's smallest unit from the operator to another account
func (s *WalletService) SendToken(ctx context.Context, toAccountID, tokenID string, amount int64) *models.TransactionOutcome {
	const failure = "Token transfer failed"
	if amount <= 0 {
		return failed(newError(ErrInvalidInput, failure, errAmountNotPositive))
	}
	return s.submit(ctx, "token_transfer", failure, func(op ledger.Operator) (*ledger.Receipt, error) {
		return op.TransferToken(ctx, strings.TrimSpace(tokenID), strings.TrimSpace(toAccountID), amount)
	})
}

// CreateToken creates a fungible token with the operator as treasury, admin and supply key
func (s *WalletService) CreateToken(ctx context.Context, spec models.TokenSpec) *models.TransactionOutcome {
	const failure = "Token creation failed"
	spec.Name = strings.TrimSpace(spec.Name)
	spec.Symbol = strings.TrimSpace(spec.Symbol)
	if spec.Name == "" || spec.Symbol == "" {
		return failed(newError(ErrInvalidInput, failure+": name and symbol are required", nil))
	}
	return s.submit(ctx, "token_create", failure, func(op ledger.Operator) (*ledger.Receipt, error) {
		return op.CreateToken(ctx, spec)
	})
}

// AssociateToken lets the operator's account hold a balance of the token
func (s *WalletService) AssociateToken(ctx context.Context, tokenID string) *models.TransactionOutcome {
	return s.submit(ctx, "token_associate", "Token association failed", func(op ledger.Operator) (*ledger.Receipt, error) {
		return op.AssociateToken(ctx, strings.TrimSpace(tokenID))
	})
}

// CreateTopic creates a topic; a private topic only accepts messages signed by the operator
func (s *WalletService) CreateTopic(ctx context.Context, memo string, private bool) *models.TransactionOutcome {
	return s.submit(ctx, "topic_create", "Topic creation failed", func(op ledger.Operator) (*ledger.Receipt, error) {
		return op.CreateTopic(ctx, memo, private)
	})
}

// SendTopicMessage publishes a message to a topic
func (s *WalletService) SendTopicMessage(ctx context.Context, topicID, message string) *models.TransactionOutcome {
	const failure = "Message submission failed"
	if message == "" {
		return failed(newError(ErrInvalidInput, failure+": message is empty", nil))
	}
	return s.submit(ctx, "topic_message", failure, func(op ledger.Operator) (*ledger.Receipt, error) {
		return op.SubmitMessage(ctx, strings.TrimSpace(topicID), []byte(message))
	})
}

// submit runs one transaction under the current operator and translates the result.
func (s *WalletService) submit(ctx context.Context, opName, failure string, fn func(ledger.Operator) (*ledger.Receipt, error)) *models.TransactionOutcome {
	sess := s.acquire()
	if sess == nil {
		return failed(newError(ErrNotConnected, failure+": "+ErrNotConnected.Error(), nil))
	}
	defer sess.inflight.Done()

	start := time.Now()
	receipt, err := fn(sess.op)
	s.Config.Metrics.ObserveOperation(opName, err == nil, time.Since(start))

	logger := s.Config.Log.WithFields(log.F{"operation": opName, "operator": sess.op.AccountID()})
	if err != nil {
		logger.WithField("err", err).Warn("transaction failed")
		return failed(newError(ErrSubmissionFailed, failure, err))
	}
	logger.WithField("tx", receipt.TransactionID).Info("transaction succeeded")

	return &models.TransactionOutcome{
		Success:       true,
		TransactionID: receipt.TransactionID,
		Details: &models.OutcomeDetails{
			Status:         receipt.Status,
			TokenID:        receipt.TokenID,
			TopicID:        receipt.TopicID,
			SequenceNumber: receipt.SequenceNumber,
		},
	}
}

func failed(err *Error) *models.TransactionOutcome {
	return &models.TransactionOutcome{
		Success: false,
		Error:   err.Error(),
		Err:     err,
	}
}
