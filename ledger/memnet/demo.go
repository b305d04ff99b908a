package memnet

import (
	"context"

	"github.com/stellar/go/support/errors"

	"github.com/saif727/hedera-wallet-backend/models"
)

// DemoBalance is the starting balance of the demo operator: 50 hbar
const DemoBalance int64 = 50 * 100_000_000

var demoTokens = []models.TokenSpec{
	{Name: "Demo Token", Symbol: "DEMO", InitialSupply: 1000},
	{Name: "Test Coin", Symbol: "TEST", InitialSupply: 500},
}

// NewDemo creates a network with a funded operator holding two demo tokens
// and returns the operator's credentials.
func NewDemo() (*Network, models.Credentials, error) {
	n := New()
	accountID, key, err := n.CreateAccount(DemoBalance)
	if err != nil {
		return nil, models.Credentials{}, err
	}
	op, err := n.Bind(accountID, key)
	if err != nil {
		return nil, models.Credentials{}, errors.Wrap(err, "failed to bind demo operator")
	}
	for _, spec := range demoTokens {
		if _, err := op.CreateToken(context.Background(), spec); err != nil {
			return nil, models.Credentials{}, errors.Wrapf(err, "failed to create %s", spec.Symbol)
		}
	}
	return n, models.Credentials{AccountID: accountID, PrivateKey: key}, nil
}
