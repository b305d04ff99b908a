package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saif727/hedera-wallet-backend/ledger"
	"github.com/saif727/hedera-wallet-backend/models"
	"github.com/saif727/hedera-wallet-backend/services"
	"github.com/saif727/hedera-wallet-backend/watch"
)

// WalletController handles wallet-related HTTP requests
type WalletController struct {
	Service  *services.WalletService
	Poller   *watch.AccountPoller
	Listener *watch.TopicListener
	Alerts   *watch.AlertFeed
}

// NewWalletController creates a new WalletController instance
func NewWalletController(service *services.WalletService, poller *watch.AccountPoller, listener *watch.TopicListener, alerts *watch.AlertFeed) *WalletController {
	return &WalletController{Service: service, Poller: poller, Listener: listener, Alerts: alerts}
}

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotConnected):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrStorageFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func respondOutcome(c *gin.Context, outcome *models.TransactionOutcome) {
	if !outcome.Success {
		c.JSON(statusFor(outcome.Err), outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Connect handles POST /api/v1/wallet/connect
func (ctrl *WalletController) Connect(c *gin.Context) {
	var req models.ConnectRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := ctrl.Service.Connect(req.AccountID, req.PrivateKey); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	ctrl.Poller.Activate(ctrl.Service.OperatorAccountID())
	c.JSON(http.StatusOK, ctrl.status())
}

// Disconnect handles POST /api/v1/wallet/disconnect
func (ctrl *WalletController) Disconnect(c *gin.Context) {
	if err := ctrl.Service.Disconnect(); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	ctrl.Poller.Stop()
	c.JSON(http.StatusOK, ctrl.status())
}

// Status handles GET /api/v1/wallet/status
func (ctrl *WalletController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, ctrl.status())
}

func (ctrl *WalletController) status() models.StatusResponse {
	return models.StatusResponse{
		Connected: ctrl.Service.IsConnected(),
		AccountID: ctrl.Service.OperatorAccountID(),
		Network:   ctrl.Service.NetworkName(),
	}
}

// Account handles GET /api/v1/wallet/account
func (ctrl *WalletController) Account(c *gin.Context) {
	if !ctrl.Service.IsConnected() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": services.ErrNotConnected.Error()})
		return
	}
	c.JSON(http.StatusOK, ctrl.accountView())
}

// RefreshAccount handles POST /api/v1/wallet/account/refresh
func (ctrl *WalletController) RefreshAccount(c *gin.Context) {
	if !ctrl.Service.IsConnected() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": services.ErrNotConnected.Error()})
		return
	}
	if _, err := ctrl.Poller.Refresh(c.Request.Context()); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ctrl.accountView())
}

func (ctrl *WalletController) accountView() models.AccountViewResponse {
	snapshot, at := ctrl.Poller.Snapshot()
	view := models.AccountViewResponse{Account: snapshot}
	if !at.IsZero() {
		view.LastRefresh = at.UTC().Format(time.RFC3339)
	}
	if err := ctrl.Poller.LastError(); err != nil {
		view.LastError = err.Error()
	}
	return view
}

// GetAccount handles GET /api/v1/accounts/:account_id
func (ctrl *WalletController) GetAccount(c *gin.Context) {
	snapshot, err := ctrl.Service.GetAccountInfo(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// SendHbar handles POST /api/v1/transfers/hbar
func (ctrl *WalletController) SendHbar(c *gin.Context) {
	var req models.HbarTransferRequest
	if !bindJSON(c, &req) {
		return
	}
	amount, err := services.ParseHbar(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respondOutcome(c, ctrl.Service.SendHbar(c.Request.Context(), req.ToAccountID, amount))
}

// SendToken handles POST /api/v1/transfers/token
func (ctrl *WalletController) SendToken(c *gin.Context) {
	var req models.TokenTransferRequest
	if !bindJSON(c, &req) {
		return
	}
	respondOutcome(c, ctrl.Service.SendToken(c.Request.Context(), req.ToAccountID, req.TokenID, req.Amount))
}

// CreateToken handles POST /api/v1/tokens
func (ctrl *WalletController) CreateToken(c *gin.Context) {
	var req models.CreateTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	spec := models.TokenSpec{
		Name:          req.Name,
		Symbol:        req.Symbol,
		Decimals:      req.Decimals,
		InitialSupply: req.InitialSupply,
	}
	respondOutcome(c, ctrl.Service.CreateToken(c.Request.Context(), spec))
}

// AssociateToken handles POST /api/v1/tokens/:token_id/associate
func (ctrl *WalletController) AssociateToken(c *gin.Context) {
	respondOutcome(c, ctrl.Service.AssociateToken(c.Request.Context(), c.Param("token_id")))
}

// CreateTopic handles POST /api/v1/topics
func (ctrl *WalletController) CreateTopic(c *gin.Context) {
	var req models.CreateTopicRequest
	if !bindJSON(c, &req) {
		return
	}
	respondOutcome(c, ctrl.Service.CreateTopic(c.Request.Context(), req.Memo, req.Private))
}

// SendTopicMessage handles POST /api/v1/topics/:topic_id/messages
func (ctrl *WalletController) SendTopicMessage(c *gin.Context) {
	var req models.TopicMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	respondOutcome(c, ctrl.Service.SendTopicMessage(c.Request.Context(), c.Param("topic_id"), req.Message))
}

// GetTopicMessages handles GET /api/v1/topics/:topic_id/messages?since=<seconds.nanos>
func (ctrl *WalletController) GetTopicMessages(c *gin.Context) {
	var since time.Time
	if s := c.Query("since"); s != "" {
		t, err := ledger.ParseTimestamp(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp: " + err.Error()})
			return
		}
		since = t
	}
	messages, err := ctrl.Service.GetTopicMessages(c.Request.Context(), c.Param("topic_id"), since)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []models.TopicMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"topic_id": c.Param("topic_id"), "messages": messages})
}

// ToggleListener handles POST /api/v1/topics/:topic_id/listen
func (ctrl *WalletController) ToggleListener(c *gin.Context) {
	if _, err := ctrl.Listener.Toggle(c.Param("topic_id")); err != nil {
		status := statusFor(err)
		if errors.Is(err, watch.ErrTopicRequired) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ctrl.listener())
}

// ListenerState handles GET /api/v1/topics/listener
func (ctrl *WalletController) ListenerState(c *gin.Context) {
	c.JSON(http.StatusOK, ctrl.listener())
}

func (ctrl *WalletController) listener() models.ListenerResponse {
	return models.ListenerResponse{
		TopicID:  ctrl.Listener.TopicID(),
		Active:   ctrl.Listener.Active(),
		Messages: ctrl.Listener.Messages(),
	}
}

// RecentAlerts handles GET /api/v1/alerts
func (ctrl *WalletController) RecentAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": ctrl.Alerts.Recent()})
}
