// Package ledger defines the boundary between the wallet and a Hedera network,
// with an SDK-backed implementation and a mirror-node REST client.
package ledger

import (
	"context"
	"time"

	"github.com/saif727/hedera-wallet-backend/models"
)

// Receipt is the translated result of a submitted transaction.
type Receipt struct {
	TransactionID  string
	Status         string
	TokenID        string
	TopicID        string
	SequenceNumber uint64
}

// Network is a Hedera network as seen by the wallet. Reads and subscriptions
// are not tied to an operator; transactions go through an Operator.
type Network interface {
	// Name returns the network name (testnet, mainnet, previewnet, demo).
	Name() string

	// Bind validates the credentials and returns a session that submits
	// transactions paid for and signed by that account.
	Bind(accountID, privateKey string) (Operator, error)

	AccountInfo(ctx context.Context, accountID string) (*models.AccountSnapshot, error)

	// TopicMessages reads the messages published to a topic at or after since,
	// ordered by sequence number.
	TopicMessages(ctx context.Context, topicID string, since time.Time) ([]models.TopicMessage, error)

	// SubscribeTopic streams messages published at or after start. onMessage is
	// called from a single goroutine in consensus order; onError is called when
	// the stream fails. The returned cancel func stops the stream.
	SubscribeTopic(topicID string, start time.Time, onMessage func(models.TopicMessage), onError func(error)) (cancel func(), err error)

	Close() error
}

// Operator submits transactions on behalf of one account. Each call waits for
// the receipt and fails when the network reports a non-success status.
type Operator interface {
	AccountID() string
	TransferHbar(ctx context.Context, to string, tinybars int64) (*Receipt, error)
	TransferToken(ctx context.Context, tokenID, to string, amount int64) (*Receipt, error)
	CreateToken(ctx context.Context, spec models.TokenSpec) (*Receipt, error)
	AssociateToken(ctx context.Context, tokenID string) (*Receipt, error)
	CreateTopic(ctx context.Context, memo string, private bool) (*Receipt, error)
	SubmitMessage(ctx context.Context, topicID string, message []byte) (*Receipt, error)
	Close() error
}
