package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saif727/hedera-wallet-backend/ledger/memnet"
	"github.com/saif727/hedera-wallet-backend/metrics"
	"github.com/saif727/hedera-wallet-backend/models"
	"github.com/saif727/hedera-wallet-backend/services"
	"github.com/saif727/hedera-wallet-backend/watch"
)

type memoryStore struct {
	creds *models.Credentials
}

func (m *memoryStore) Save(creds models.Credentials) error {
	m.creds = &creds
	return nil
}

func (m *memoryStore) Load() (*models.Credentials, error) { return m.creds, nil }

func (m *memoryStore) Clear() error {
	m.creds = nil
	return nil
}

type fixture struct {
	net    *memnet.Network
	creds  models.Credentials
	store  *memoryStore
	router *gin.Engine
	ctrl   *WalletController
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	net, creds, err := memnet.NewDemo()
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	store := &memoryStore{}
	service := services.NewWalletService(services.Config{
		Network: net,
		Store:   store,
		Metrics: metrics.New(reg),
	})
	alerts := watch.NewAlertFeed(0, nil)
	poller := watch.NewAccountPoller(watch.PollerConfig{
		Fetcher:  service,
		Interval: time.Hour,
		Alerts:   alerts,
	})
	listener := watch.NewTopicListener(service, alerts, nil)
	t.Cleanup(func() {
		poller.Stop()
		listener.Close()
	})

	ctrl := NewWalletController(service, poller, listener, alerts)
	return &fixture{net: net, creds: creds, store: store, router: NewRouter(ctrl, reg, nil), ctrl: ctrl}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/wallet/connect", models.ConnectRequest{
		AccountID:  f.creds.AccountID,
		PrivateKey: f.creds.PrivateKey,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestConnectAndDisconnect(t *testing.T) {
	f := newFixture(t)

	var status models.StatusResponse
	decode(t, f.do(t, http.MethodGet, "/api/v1/wallet/status", nil), &status)
	assert.False(t, status.Connected)
	assert.Equal(t, "demo", status.Network)

	f.connect(t)
	decode(t, f.do(t, http.MethodGet, "/api/v1/wallet/status", nil), &status)
	assert.True(t, status.Connected)
	assert.Equal(t, f.creds.AccountID, status.AccountID)
	require.NotNil(t, f.store.creds)
	assert.True(t, f.ctrl.Poller.Active())

	w := f.do(t, http.MethodPost, "/api/v1/wallet/disconnect", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &status)
	assert.False(t, status.Connected)
	assert.Nil(t, f.store.creds)
	assert.False(t, f.ctrl.Poller.Active())
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/wallet/connect", models.ConnectRequest{AccountID: "not-an-id", PrivateKey: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials")

	w = f.do(t, http.MethodPost, "/api/v1/wallet/connect", gin.H{"account_id": "0.0.2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
	assert.Nil(t, f.store.creds)
}

func TestTransferRequiresConnection(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/transfers/hbar", models.HbarTransferRequest{ToAccountID: "0.0.3", Amount: "1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var outcome models.TransactionOutcome
	decode(t, w, &outcome)
	assert.False(t, outcome.Success)
	assert.Equal(t, "Transfer failed: wallet not connected", outcome.Error)
}

func TestNonPositiveAmountsAreNotSubmitted(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	before := f.net.Submissions()

	for _, amount := range []string{"0", "-1", "abc", "0.000000001"} {
		w := f.do(t, http.MethodPost, "/api/v1/transfers/hbar", models.HbarTransferRequest{ToAccountID: "0.0.3", Amount: amount})
		assert.Equal(t, http.StatusBadRequest, w.Code, amount)
	}
	w := f.do(t, http.MethodPost, "/api/v1/transfers/token", models.TokenTransferRequest{ToAccountID: "0.0.3", TokenID: "0.0.1002", Amount: -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, before, f.net.Submissions())
}

func TestHbarTransfer(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	to, _, err := f.net.CreateAccount(0)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/v1/transfers/hbar", models.HbarTransferRequest{ToAccountID: to, Amount: "1.5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var outcome models.TransactionOutcome
	decode(t, w, &outcome)
	assert.True(t, outcome.Success)
	assert.NotEmpty(t, outcome.TransactionID)

	var snapshot models.AccountSnapshot
	w = f.do(t, http.MethodGet, "/api/v1/accounts/"+to, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &snapshot)
	assert.Equal(t, int64(150_000_000), snapshot.Balance)
}

func TestUnknownAccountIsBadGateway(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/accounts/0.0.424242", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to get account info")
}

func TestAccountViewAndRefresh(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/wallet/account", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	f.connect(t)
	w = f.do(t, http.MethodPost, "/api/v1/wallet/account/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var view models.AccountViewResponse
	decode(t, w, &view)
	require.NotNil(t, view.Account)
	assert.Equal(t, memnet.DemoBalance, view.Account.Balance)
	assert.Len(t, view.Account.Tokens, 2)
	assert.NotEmpty(t, view.LastRefresh)
}

func TestTokenLifecycle(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	w := f.do(t, http.MethodPost, "/api/v1/tokens", models.CreateTokenRequest{Name: "Gold", Symbol: "GLD", Decimals: 2, InitialSupply: 10_000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created models.TransactionOutcome
	decode(t, w, &created)
	require.NotNil(t, created.Details)
	tokenID := created.Details.TokenID
	require.NotEmpty(t, tokenID)

	w = f.do(t, http.MethodPost, "/api/v1/tokens/"+tokenID+"/associate", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), memnet.StatusTokenAlreadyAssociated)

	w = f.do(t, http.MethodPost, "/api/v1/transfers/token", models.TokenTransferRequest{ToAccountID: "0.0.3", TokenID: tokenID, Amount: 5})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Token transfer failed")
}

func TestTopicRoutes(t *testing.T) {
	f := newFixture(t)
	f.connect(t)

	w := f.do(t, http.MethodPost, "/api/v1/topics", models.CreateTopicRequest{Memo: "news"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created models.TransactionOutcome
	decode(t, w, &created)
	topicID := created.Details.TopicID

	w = f.do(t, http.MethodPost, "/api/v1/topics/"+topicID+"/listen", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var state models.ListenerResponse
	decode(t, w, &state)
	assert.True(t, state.Active)

	for _, msg := range []string{"first", "second"} {
		w = f.do(t, http.MethodPost, "/api/v1/topics/"+topicID+"/messages", models.TopicMessageRequest{Message: msg})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	var listed struct {
		Messages []models.TopicMessage `json:"messages"`
	}
	decode(t, f.do(t, http.MethodGet, "/api/v1/topics/"+topicID+"/messages", nil), &listed)
	require.Len(t, listed.Messages, 2)
	assert.Equal(t, uint64(1), listed.Messages[0].SequenceNumber)
	assert.Equal(t, "second", listed.Messages[1].Contents)

	require.Eventually(t, func() bool {
		decode(t, f.do(t, http.MethodGet, "/api/v1/topics/listener", nil), &state)
		return len(state.Messages) == 2
	}, time.Second, 5*time.Millisecond)

	w = f.do(t, http.MethodPost, "/api/v1/topics/"+topicID+"/listen", nil)
	decode(t, w, &state)
	assert.False(t, state.Active)
	assert.Len(t, state.Messages, 2)

	w = f.do(t, http.MethodGet, "/api/v1/topics/"+topicID+"/messages?since=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamTopic(t *testing.T) {
	f := newFixture(t)
	f.connect(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	outcome := f.ctrl.Service.CreateTopic(ctx, "live", false)
	require.True(t, outcome.Success, outcome.Error)
	topicID := outcome.Details.TopicID

	server := httptest.NewServer(f.router)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/topics/" + topicID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the subscription is opened before the upgrade completes
	sent := f.ctrl.Service.SendTopicMessage(ctx, topicID, "hello")
	require.True(t, sent.Success, sent.Error)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.TopicMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "hello", msg.Contents)
	assert.Equal(t, topicID, msg.TopicID)
}

func TestAlertsAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Alerts.Alert("Subscription Error", nil)

	var body struct {
		Alerts []watch.Alert `json:"alerts"`
	}
	decode(t, f.do(t, http.MethodGet, "/api/v1/alerts", nil), &body)
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, "Subscription Error", body.Alerts[0].Title)

	f.do(t, http.MethodGet, "/api/v1/accounts/0.0.424242", nil)
	w := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `hedera_wallet_operations_total{operation="account_info",result="failure"} 1`)
}
