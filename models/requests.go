package models

// ConnectRequest represents the request body for the connect endpoint
type ConnectRequest struct {
	AccountID  string `json:"account_id" binding:"required"`
	PrivateKey string `json:"private_key" binding:"required"`
}

// HbarTransferRequest represents the request body for the hbar transfer endpoint
type HbarTransferRequest struct {
	ToAccountID string `json:"to_account_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
}

// TokenTransferRequest represents the request body for the token transfer endpoint
type TokenTransferRequest struct {
	ToAccountID string `json:"to_account_id" binding:"required"`
	TokenID     string `json:"token_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
}

// CreateTokenRequest represents the request body for the token creation endpoint
type CreateTokenRequest struct {
	Name          string `json:"name" binding:"required"`
	Symbol        string `json:"symbol" binding:"required"`
	Decimals      uint32 `json:"decimals"`
	InitialSupply uint64 `json:"initial_supply"`
}

// CreateTopicRequest represents the request body for the topic creation endpoint
type CreateTopicRequest struct {
	Memo    string `json:"memo" binding:"required"`
	Private bool   `json:"private"`
}

// TopicMessageRequest represents the request body for publishing a topic message
type TopicMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// StatusResponse represents the API response for the wallet status endpoint
type StatusResponse struct {
	Connected bool   `json:"connected"`
	AccountID string `json:"account_id,omitempty"`
	Network   string `json:"network"`
}

// AccountViewResponse represents the polled view of the connected account
type AccountViewResponse struct {
	Account     *AccountSnapshot `json:"account"`
	LastRefresh string           `json:"last_refresh,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
}

// ListenerResponse represents the state of the topic listener
type ListenerResponse struct {
	TopicID  string         `json:"topic_id"`
	Active   bool           `json:"active"`
	Messages []TopicMessage `json:"messages"`
}
