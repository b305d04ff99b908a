package models

import "time"

// Credentials identify the operator that pays for and signs transactions
type Credentials struct {
	AccountID  string `json:"account_id"`
	PrivateKey string `json:"-"`
}

// AccountSnapshot is a point-in-time view of an account's balances
type AccountSnapshot struct {
	AccountID string         `json:"account_id"`
	Balance   int64          `json:"balance"` // tinybars
	Tokens    []TokenHolding `json:"tokens"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// TokenHolding is an account's balance of a single token
type TokenHolding struct {
	TokenID  string `json:"token_id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Balance  string `json:"balance"`
	Decimals uint32 `json:"decimals"`
}

// OutcomeDetails holds the operation-specific part of a TransactionOutcome
type OutcomeDetails struct {
	Status         string `json:"status,omitempty"`
	TokenID        string `json:"token_id,omitempty"`
	TopicID        string `json:"topic_id,omitempty"`
	SequenceNumber uint64 `json:"sequence_number,omitempty"`
}

// TransactionOutcome is the result envelope of every mutating operation
type TransactionOutcome struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Error         string          `json:"error,omitempty"`
	Details       *OutcomeDetails `json:"details,omitempty"`

	// Err carries the typed failure for callers that need errors.Is.
	Err error `json:"-"`
}

// TopicMessage is one consensus message published to a topic
type TopicMessage struct {
	TopicID            string    `json:"topic_id"`
	SequenceNumber     uint64    `json:"sequence_number"`
	Contents           string    `json:"contents"`
	ConsensusTimestamp time.Time `json:"consensus_timestamp"`
	RunningHash        string    `json:"running_hash"`
}

// TokenSpec describes a fungible token to create
type TokenSpec struct {
	Name          string
	Symbol        string
	Decimals      uint32
	InitialSupply uint64
}
