package memnet

import (
	"context"
	"math"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/stellar/go/support/errors"

	"github.com/saif727/hedera-wallet-backend/ledger"
	"github.com/saif727/hedera-wallet-backend/models"
)

type operator struct {
	net       *Network
	id        hedera.AccountID
	publicKey string
}

var _ ledger.Operator = (*operator)(nil)

func (o *operator) AccountID() string { return o.id.String() }

func (o *operator) Close() error { return nil }

func (o *operator) TransferHbar(ctx context.Context, to string, tinybars int64) (*ledger.Receipt, error) {
	toID, err := hedera.AccountIDFromString(to)
	if err != nil {
		return nil, errors.Wrap(err, "invalid recipient account id")
	}
	return o.net.apply(ctx, o.id, func() (*ledger.Receipt, string) {
		n := o.net
		from := n.accounts[o.id.String()]
		dest, ok := n.accounts[toID.String()]
		switch {
		case !ok:
			return nil, StatusInvalidAccountID
		case toID.String() == o.id.String():
			return nil, StatusAccountRepeatedInTransfer
		case tinybars <= 0:
			return nil, StatusInvalidTransactionBody
		case from.tinybars < tinybars:
			return nil, StatusInsufficientPayerBalance
		}
		from.tinybars -= tinybars
		dest.tinybars += tinybars
		return nil, StatusSuccess
	})
}

func (o *operator) TransferToken(ctx context.Context, tokenID, to string, amount int64) (*ledger.Receipt, error) {
	toID, err := hedera.AccountIDFromString(to)
	if err != nil {
		return nil, errors.Wrap(err, "invalid recipient account id")
	}
	tok, err := hedera.TokenIDFromString(tokenID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid token id")
	}
	tokenID = tok.String()
	return o.net.apply(ctx, o.id, func() (*ledger.Receipt, string) {
		n := o.net
		if _, ok := n.tokens[tokenID]; !ok {
			return nil, StatusInvalidTokenID
		}
		from := n.accounts[o.id.String()]
		dest, ok := n.accounts[toID.String()]
		if !ok {
			return nil, StatusInvalidAccountID
		}
		if toID.String() == o.id.String() {
			return nil, StatusAccountRepeatedInTransfer
		}
		if amount <= 0 {
			return nil, StatusInvalidTransactionBody
		}
		fromBal, ok := from.tokens[tokenID]
		if !ok {
			return nil, StatusTokenNotAssociated
		}
		if _, ok := dest.tokens[tokenID]; !ok {
			return nil, StatusTokenNotAssociated
		}
		if fromBal < amount {
			return nil, StatusInsufficientTokenBalance
		}
		from.tokens[tokenID] = fromBal - amount
		dest.tokens[tokenID] += amount
		return nil, StatusSuccess
	})
}

func (o *operator) CreateToken(ctx context.Context, spec models.TokenSpec) (*ledger.Receipt, error) {
	return o.net.apply(ctx, o.id, func() (*ledger.Receipt, string) {
		n := o.net
		if spec.Name == "" || spec.Symbol == "" || spec.InitialSupply > math.MaxInt64 {
			return nil, StatusInvalidTransactionBody
		}
		tid := hedera.TokenID{Token: n.allocate()}
		id := tid.String()
		n.tokens[id] = &token{
			name:     spec.Name,
			symbol:   spec.Symbol,
			decimals: spec.Decimals,
			treasury: o.id.String(),
			supply:   spec.InitialSupply,
		}
		// the treasury is associated on creation
		n.accounts[o.id.String()].tokens[id] = int64(spec.InitialSupply)
		return &ledger.Receipt{TokenID: id}, StatusSuccess
	})
}

func (o *operator) AssociateToken(ctx context.Context, tokenID string) (*ledger.Receipt, error) {
	tok, err := hedera.TokenIDFromString(tokenID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid token id")
	}
	tokenID = tok.String()
	return o.net.apply(ctx, o.id, func() (*ledger.Receipt, string) {
		n := o.net
		if _, ok := n.tokens[tokenID]; !ok {
			return nil, StatusInvalidTokenID
		}
		acct := n.accounts[o.id.String()]
		if _, ok := acct.tokens[tokenID]; ok {
			return nil, StatusTokenAlreadyAssociated
		}
		acct.tokens[tokenID] = 0
		return nil, StatusSuccess
	})
}

func (o *operator) CreateTopic(ctx context.Context, memo string, private bool) (*ledger.Receipt, error) {
	return o.net.apply(ctx, o.id, func() (*ledger.Receipt, string) {
		n := o.net
		tid := hedera.TopicID{Topic: n.allocate()}
		id := tid.String()
		t := &topic{memo: memo, subs: make(map[int]*subscriber)}
		if private {
			t.submitKey = o.publicKey
		}
		n.topics[id] = t
		return &ledger.Receipt{TopicID: id}, StatusSuccess
	})
}

func (o *operator) SubmitMessage(ctx context.Context, topicID string, message []byte) (*ledger.Receipt, error) {
	tid, err := hedera.TopicIDFromString(topicID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid topic id")
	}
	topicID = tid.String()
	return o.net.apply(ctx, o.id, func() (*ledger.Receipt, string) {
		n := o.net
		t, ok := n.topics[topicID]
		if !ok {
			return nil, StatusInvalidTopicID
		}
		if t.submitKey != "" && t.submitKey != o.publicKey {
			return nil, StatusInvalidSignature
		}
		if len(message) == 0 {
			return nil, StatusInvalidTransactionBody
		}

		msg := models.TopicMessage{
			TopicID:            topicID,
			SequenceNumber:     uint64(len(t.messages)) + 1,
			Contents:           string(message),
			ConsensusTimestamp: n.consensusTime(),
		}
		t.runningHash = runningHash(t.runningHash, msg)
		msg.RunningHash = hexHash(t.runningHash)
		t.messages = append(t.messages, msg)

		for id, s := range t.subs {
			if !s.publish(msg) {
				delete(t.subs, id)
				go s.fail(ErrStreamOverflow)
			}
		}
		return &ledger.Receipt{SequenceNumber: msg.SequenceNumber}, StatusSuccess
	})
}
