// Package memnet is an in-memory Hedera network. It backs the demo mode and
// stands in for the real network in tests.
package memnet

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"sort"
	"strconv"
	"sync"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/stellar/go/support/errors"

	"github.com/saif727/hedera-wallet-backend/ledger"
	"github.com/saif727/hedera-wallet-backend/models"
)

// Receipt statuses, named as the network reports them.
const (
	StatusSuccess                   = "SUCCESS"
	StatusInvalidAccountID          = "INVALID_ACCOUNT_ID"
	StatusInvalidTokenID            = "INVALID_TOKEN_ID"
	StatusInvalidTopicID            = "INVALID_TOPIC_ID"
	StatusInvalidSignature          = "INVALID_SIGNATURE"
	StatusInsufficientPayerBalance  = "INSUFFICIENT_PAYER_BALANCE"
	StatusInsufficientTokenBalance  = "INSUFFICIENT_TOKEN_BALANCE"
	StatusTokenNotAssociated        = "TOKEN_NOT_ASSOCIATED_TO_ACCOUNT"
	StatusTokenAlreadyAssociated    = "TOKEN_ALREADY_ASSOCIATED_TO_ACCOUNT"
	StatusInvalidTransactionBody    = "INVALID_TRANSACTION_BODY"
	StatusAccountRepeatedInTransfer = "ACCOUNT_REPEATED_IN_ACCOUNT_AMOUNTS"
)

const (
	firstEntityNum  = 1001
	subscriberQueue = 256
)

// ErrStreamOverflow is reported to a subscriber that fell too far behind
var ErrStreamOverflow = errors.New("topic stream overflow: subscriber too slow")

type account struct {
	publicKey string
	tinybars  int64
	tokens    map[string]int64 // associated tokens and balances
}

type token struct {
	name     string
	symbol   string
	decimals uint32
	treasury string
	supply   uint64
}

type topic struct {
	memo        string
	submitKey   string // empty when anyone may submit
	messages    []models.TopicMessage
	runningHash []byte
	subs        map[int]*subscriber
}

// Network is an in-memory ledger implementing ledger.Network
type Network struct {
	mu          sync.Mutex
	nextNum     uint64
	lastTime    time.Time
	accounts    map[string]*account
	tokens      map[string]*token
	topics      map[string]*topic
	nextSub     int
	submissions int
}

var _ ledger.Network = (*Network)(nil)

// New creates an empty in-memory network
func New() *Network {
	return &Network{
		nextNum:  firstEntityNum,
		accounts: make(map[string]*account),
		tokens:   make(map[string]*token),
		topics:   make(map[string]*topic),
	}
}

// Name returns "demo"
func (n *Network) Name() string { return "demo" }

// CreateAccount opens a funded account and returns its id and a new ED25519 private key
func (n *Network) CreateAccount(tinybars int64) (string, string, error) {
	key, err := hedera.PrivateKeyGenerateEd25519()
	if err != nil {
		return "", "", errors.Wrap(err, "failed to generate key")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	aid := hedera.AccountID{Account: n.allocate()}
	id := aid.String()
	n.accounts[id] = &account{
		publicKey: key.PublicKey().String(),
		tinybars:  tinybars,
		tokens:    make(map[string]int64),
	}
	return id, key.String(), nil
}

// Submissions returns how many transactions reached the network
func (n *Network) Submissions() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.submissions
}

// FailSubscriptions terminates every open stream on a topic with err
func (n *Network) FailSubscriptions(topicID string, err error) {
	n.mu.Lock()
	t, ok := n.topics[topicID]
	var subs []*subscriber
	if ok {
		for id, s := range t.subs {
			subs = append(subs, s)
			delete(t.subs, id)
		}
	}
	n.mu.Unlock()

	for _, s := range subs {
		s.fail(err)
	}
}

// Bind checks that the key parses and belongs to the account
func (n *Network) Bind(accountID, privateKey string) (ledger.Operator, error) {
	id, err := hedera.AccountIDFromString(accountID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid account id")
	}
	key, err := hedera.PrivateKeyFromString(privateKey)
	if err != nil {
		return nil, errors.New("invalid private key")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	acct, ok := n.accounts[id.String()]
	if !ok {
		return nil, errors.Errorf("account %s does not exist", id)
	}
	if acct.publicKey != key.PublicKey().String() {
		return nil, errors.Errorf("private key does not match account %s", id)
	}
	return &operator{net: n, id: id, publicKey: acct.publicKey}, nil
}

// AccountInfo returns a snapshot of the account's balances
func (n *Network) AccountInfo(ctx context.Context, accountID string) (*models.AccountSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	acct, ok := n.accounts[accountID]
	if !ok {
		return nil, errors.Wrapf(ledger.ErrNotFound, "account %s", accountID)
	}

	snapshot := &models.AccountSnapshot{
		AccountID: accountID,
		Balance:   acct.tinybars,
		Tokens:    make([]models.TokenHolding, 0, len(acct.tokens)),
		FetchedAt: time.Now().UTC(),
	}
	for tokenID, balance := range acct.tokens {
		t := n.tokens[tokenID]
		snapshot.Tokens = append(snapshot.Tokens, models.TokenHolding{
			TokenID:  tokenID,
			Name:     t.name,
			Symbol:   t.symbol,
			Balance:  strconv.FormatInt(balance, 10),
			Decimals: t.decimals,
		})
	}
	sort.Slice(snapshot.Tokens, func(i, j int) bool {
		return snapshot.Tokens[i].TokenID < snapshot.Tokens[j].TokenID
	})
	return snapshot, nil
}

// TopicMessages returns the stored messages at or after since
func (n *Network) TopicMessages(ctx context.Context, topicID string, since time.Time) ([]models.TopicMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.topics[topicID]
	if !ok {
		return nil, errors.Wrapf(ledger.ErrNotFound, "topic %s", topicID)
	}
	out := []models.TopicMessage{}
	for _, m := range t.messages {
		if !m.ConsensusTimestamp.Before(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

// SubscribeTopic replays stored messages at or after start, then streams new ones
func (n *Network) SubscribeTopic(topicID string, start time.Time, onMessage func(models.TopicMessage), onError func(error)) (func(), error) {
	n.mu.Lock()
	t, ok := n.topics[topicID]
	if !ok {
		n.mu.Unlock()
		return nil, errors.Errorf("exceptional status: %s", StatusInvalidTopicID)
	}
	var replay []models.TopicMessage
	for _, m := range t.messages {
		if !m.ConsensusTimestamp.Before(start) {
			replay = append(replay, m)
		}
	}
	s := newSubscriber(len(replay)+subscriberQueue, onMessage, onError)
	for _, m := range replay {
		s.queue <- m
	}
	id := n.nextSub
	n.nextSub++
	t.subs[id] = s
	n.mu.Unlock()

	go s.run()
	return func() {
		n.mu.Lock()
		delete(t.subs, id)
		n.mu.Unlock()
		s.stop()
	}, nil
}

// Close stops every open stream
func (n *Network) Close() error {
	n.mu.Lock()
	var subs []*subscriber
	for _, t := range n.topics {
		for id, s := range t.subs {
			subs = append(subs, s)
			delete(t.subs, id)
		}
	}
	n.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
	return nil
}

// allocate returns the next entity number. Callers hold n.mu.
func (n *Network) allocate() uint64 {
	num := n.nextNum
	n.nextNum++
	return num
}

// consensusTime returns a strictly increasing timestamp. Callers hold n.mu.
func (n *Network) consensusTime() time.Time {
	now := time.Now().UTC()
	if !now.After(n.lastTime) {
		now = n.lastTime.Add(time.Nanosecond)
	}
	n.lastTime = now
	return now
}

// apply runs fn as one transaction paid by payer. Callers must not hold n.mu.
func (n *Network) apply(ctx context.Context, payer hedera.AccountID, fn func() (*ledger.Receipt, string)) (*ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.submissions++

	txID := hedera.TransactionIDGenerate(payer).String()
	receipt, status := fn()
	if status != StatusSuccess {
		return nil, errors.Errorf("exceptional receipt status for transaction %s: %s", txID, status)
	}
	if receipt == nil {
		receipt = &ledger.Receipt{}
	}
	receipt.TransactionID = txID
	receipt.Status = StatusSuccess
	return receipt, nil
}

func runningHash(prev []byte, msg models.TopicMessage) []byte {
	h := sha512.New384()
	h.Write(prev)
	h.Write([]byte(msg.TopicID))
	h.Write([]byte(strconv.FormatUint(msg.SequenceNumber, 10)))
	h.Write([]byte(msg.Contents))
	return h.Sum(nil)
}

func hexHash(b []byte) string { return hex.EncodeToString(b) }
