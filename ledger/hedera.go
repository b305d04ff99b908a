package ledger

import (
	"context"
	"encoding/hex"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/stellar/go/support/errors"
	"github.com/stellar/go/support/log"
	"google.golang.org/grpc/status"

	"github.com/saif727/hedera-wallet-backend/models"
)

// HederaNetwork talks to a public Hedera network through the Go SDK. Reads go
// to the mirror node REST API; topic streams go to the mirror gRPC API.
type HederaNetwork struct {
	name   string
	client *hedera.Client
	mirror *MirrorClient
	log    *log.Entry
}

// NewHederaNetwork creates a HederaNetwork for testnet, mainnet or previewnet
func NewHederaNetwork(name string, mirror *MirrorClient, logger *log.Entry) (*HederaNetwork, error) {
	if mirror == nil {
		return nil, errors.New("mirror client is required")
	}
	client, err := hedera.ClientForName(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown network %q", name)
	}
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &HederaNetwork{
		name:   name,
		client: client,
		mirror: mirror,
		log:    logger.WithField("network", name),
	}, nil
}

// Name returns the network name
func (n *HederaNetwork) Name() string { return n.name }

// Bind parses the credentials and opens a client dedicated to that operator
func (n *HederaNetwork) Bind(accountID, privateKey string) (Operator, error) {
	id, err := hedera.AccountIDFromString(accountID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid account id")
	}
	key, err := hedera.PrivateKeyFromString(privateKey)
	if err != nil {
		return nil, errors.New("invalid private key")
	}
	client, err := hedera.ClientForName(n.name)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown network %q", n.name)
	}
	client.SetOperator(id, key)
	return &hederaOperator{
		id:     id,
		key:    key,
		client: client,
		log:    n.log.WithField("operator", id.String()),
	}, nil
}

// AccountInfo fetches balances from the mirror node
func (n *HederaNetwork) AccountInfo(ctx context.Context, accountID string) (*models.AccountSnapshot, error) {
	if _, err := hedera.AccountIDFromString(accountID); err != nil {
		return nil, errors.Wrap(err, "invalid account id")
	}
	return n.mirror.AccountInfo(ctx, accountID)
}

// TopicMessages reads topic history from the mirror node
func (n *HederaNetwork) TopicMessages(ctx context.Context, topicID string, since time.Time) ([]models.TopicMessage, error) {
	if _, err := hedera.TopicIDFromString(topicID); err != nil {
		return nil, errors.Wrap(err, "invalid topic id")
	}
	return n.mirror.TopicMessages(ctx, topicID, since)
}

// SubscribeTopic opens a mirror node gRPC stream for the topic
func (n *HederaNetwork) SubscribeTopic(topicID string, start time.Time, onMessage func(models.TopicMessage), onError func(error)) (func(), error) {
	id, err := hedera.TopicIDFromString(topicID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid topic id")
	}
	handle, err := hedera.NewTopicMessageQuery().
		SetTopicID(id).
		SetStartTime(start).
		SetErrorHandler(func(stat status.Status) {
			onError(errors.Errorf("topic stream closed: %s: %s", stat.Code(), stat.Message()))
		}).
		Subscribe(n.client, func(msg hedera.TopicMessage) {
			onMessage(models.TopicMessage{
				TopicID:            topicID,
				SequenceNumber:     msg.SequenceNumber,
				Contents:           string(msg.Contents),
				ConsensusTimestamp: msg.ConsensusTimestamp.UTC(),
				RunningHash:        hex.EncodeToString(msg.RunningHash),
			})
		})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open topic stream")
	}
	return handle.Unsubscribe, nil
}

// Close releases the network client
func (n *HederaNetwork) Close() error {
	return n.client.Close()
}

type hederaOperator struct {
	id     hedera.AccountID
	key    hedera.PrivateKey
	client *hedera.Client
	log    *log.Entry
}

func (o *hederaOperator) AccountID() string { return o.id.String() }

func (o *hederaOperator) Close() error { return o.client.Close() }

// execute submits a transaction and waits for its receipt.
func (o *hederaOperator) execute(ctx context.Context, kind string, submit func() (hedera.TransactionResponse, error)) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := submit()
	if err != nil {
		return nil, errors.Wrap(err, "failed to submit transaction")
	}
	receipt, err := resp.GetReceipt(o.client)
	if err != nil {
		return nil, errors.Wrapf(err, "transaction %s failed", resp.TransactionID.String())
	}
	o.log.WithFields(log.F{"tx": resp.TransactionID.String(), "kind": kind, "status": receipt.Status.String()}).Debug("transaction confirmed")

	out := &Receipt{
		TransactionID:  resp.TransactionID.String(),
		Status:         receipt.Status.String(),
		SequenceNumber: receipt.TopicSequenceNumber,
	}
	if receipt.TokenID != nil {
		out.TokenID = receipt.TokenID.String()
	}
	if receipt.TopicID != nil {
		out.TopicID = receipt.TopicID.String()
	}
	return out, nil
}

func (o *hederaOperator) TransferHbar(ctx context.Context, to string, tinybars int64) (*Receipt, error) {
	toID, err := hedera.AccountIDFromString(to)
	if err != nil {
		return nil, errors.Wrap(err, "invalid recipient account id")
	}
	return o.execute(ctx, "hbar_transfer", func() (hedera.TransactionResponse, error) {
		return hedera.NewTransferTransaction().
			AddHbarTransfer(o.id, hedera.HbarFromTinybar(-tinybars)).
			AddHbarTransfer(toID, hedera.HbarFromTinybar(tinybars)).
			Execute(o.client)
	})
}

func (o *hederaOperator) TransferToken(ctx context.Context, tokenID, to string, amount int64) (*Receipt, error) {
	token, err := hedera.TokenIDFromString(tokenID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid token id")
	}
	toID, err := hedera.AccountIDFromString(to)
	if err != nil {
		return nil, errors.Wrap(err, "invalid recipient account id")
	}
	return o.execute(ctx, "token_transfer", func() (hedera.TransactionResponse, error) {
		return hedera.NewTransferTransaction().
			AddTokenTransfer(token, o.id, -amount).
			AddTokenTransfer(token, toID, amount).
			Execute(o.client)
	})
}

func (o *hederaOperator) CreateToken(ctx context.Context, spec models.TokenSpec) (*Receipt, error) {
	pub := o.key.PublicKey()
	return o.execute(ctx, "token_create", func() (hedera.TransactionResponse, error) {
		return hedera.NewTokenCreateTransaction().
			SetTokenName(spec.Name).
			SetTokenSymbol(spec.Symbol).
			SetTokenType(hedera.TokenTypeFungibleCommon).
			SetSupplyType(hedera.TokenSupplyTypeInfinite).
			SetDecimals(uint(spec.Decimals)).
			SetInitialSupply(spec.InitialSupply).
			SetTreasuryAccountID(o.id).
			SetAdminKey(pub).
			SetSupplyKey(pub).
			Execute(o.client)
	})
}

func (o *hederaOperator) AssociateToken(ctx context.Context, tokenID string) (*Receipt, error) {
	token, err := hedera.TokenIDFromString(tokenID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid token id")
	}
	return o.execute(ctx, "token_associate", func() (hedera.TransactionResponse, error) {
		return hedera.NewTokenAssociateTransaction().
			SetAccountID(o.id).
			SetTokenIDs(token).
			Execute(o.client)
	})
}

func (o *hederaOperator) CreateTopic(ctx context.Context, memo string, private bool) (*Receipt, error) {
	pub := o.key.PublicKey()
	return o.execute(ctx, "topic_create", func() (hedera.TransactionResponse, error) {
		tx := hedera.NewTopicCreateTransaction().
			SetTopicMemo(memo).
			SetAdminKey(pub)
		if private {
			tx = tx.SetSubmitKey(pub)
		}
		return tx.Execute(o.client)
	})
}

func (o *hederaOperator) SubmitMessage(ctx context.Context, topicID string, message []byte) (*Receipt, error) {
	topic, err := hedera.TopicIDFromString(topicID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid topic id")
	}
	return o.execute(ctx, "topic_message", func() (hedera.TransactionResponse, error) {
		return hedera.NewTopicMessageSubmitTransaction().
			SetTopicID(topic).
			SetMessage(message).
			Execute(o.client)
	})
}
