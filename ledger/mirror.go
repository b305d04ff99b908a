package ledger

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stellar/go/support/errors"
	"github.com/stellar/go/support/log"
	"golang.org/x/time/rate"

	"github.com/saif727/hedera-wallet-backend/models"
)

const (
	// PlaceholderTokenName is shown when token metadata cannot be resolved
	PlaceholderTokenName = "Unknown Token"
	// PlaceholderTokenSymbol is shown when token metadata cannot be resolved
	PlaceholderTokenSymbol = "???"

	topicPageLimit  = 100
	maxTopicPages   = 1000
	defaultCacheLen = 256
)

// ErrNotFound is returned when the mirror node has no record of an entity
var ErrNotFound = errors.New("not found on mirror node")

var mirrorURLs = map[string]string{
	"mainnet":    "https://mainnet-public.mirrornode.hedera.com",
	"testnet":    "https://testnet.mirrornode.hedera.com",
	"previewnet": "https://previewnet.mirrornode.hedera.com",
}

// DefaultMirrorURL returns the public mirror node REST endpoint for a network
func DefaultMirrorURL(network string) (string, bool) {
	u, ok := mirrorURLs[network]
	return u, ok
}

// MirrorConfig holds mirror client configuration
type MirrorConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
	Burst     int
	CacheSize int
}

// MirrorClient reads account, token and topic data from the mirror node REST API
type MirrorClient struct {
	http    *resty.Client
	limiter *rate.Limiter
	tokens  *lru.Cache[string, tokenInfo]
	log     *log.Entry
}

type tokenInfo struct {
	Name     string
	Symbol   string
	Decimals uint32
}

type accountResponse struct {
	Account string `json:"account"`
	Balance struct {
		Balance   int64  `json:"balance"`
		Timestamp string `json:"timestamp"`
		Tokens    []struct {
			TokenID string `json:"token_id"`
			Balance int64  `json:"balance"`
		} `json:"tokens"`
	} `json:"balance"`
}

type tokenResponse struct {
	TokenID  string `json:"token_id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
}

type topicMessagesResponse struct {
	Messages []struct {
		ConsensusTimestamp string `json:"consensus_timestamp"`
		Message            string `json:"message"`
		RunningHash        string `json:"running_hash"`
		SequenceNumber     uint64 `json:"sequence_number"`
		TopicID            string `json:"topic_id"`
	} `json:"messages"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}

// NewMirrorClient creates a new MirrorClient instance
func NewMirrorClient(cfg MirrorConfig, logger *log.Entry) (*MirrorClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("mirror base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid mirror base url")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheLen
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	cache, err := lru.New[string, tokenInfo](cfg.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create token cache")
	}
	if logger == nil {
		logger = log.DefaultLogger
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &MirrorClient{
		http:    client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		tokens:  cache,
		log:     logger.WithField("component", "mirror"),
	}, nil
}

func (m *MirrorClient) get(ctx context.Context, path string, result interface{}) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}
	resp, err := m.http.R().SetContext(ctx).SetResult(result).Get(path)
	if err != nil {
		return errors.Wrap(err, "mirror request failed")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.IsError() {
		return errors.Errorf("mirror returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

// AccountInfo fetches the hbar balance and token balances of an account
func (m *MirrorClient) AccountInfo(ctx context.Context, accountID string) (*models.AccountSnapshot, error) {
	var out accountResponse
	err := m.get(ctx, "/api/v1/accounts/"+url.PathEscape(accountID)+"?transactions=false", &out)
	if err != nil {
		return nil, errors.Wrapf(err, "account %s", accountID)
	}

	snapshot := &models.AccountSnapshot{
		AccountID: accountID,
		Balance:   out.Balance.Balance,
		Tokens:    make([]models.TokenHolding, 0, len(out.Balance.Tokens)),
		FetchedAt: time.Now().UTC(),
	}
	for _, t := range out.Balance.Tokens {
		info := m.tokenInfo(ctx, t.TokenID)
		snapshot.Tokens = append(snapshot.Tokens, models.TokenHolding{
			TokenID:  t.TokenID,
			Name:     info.Name,
			Symbol:   info.Symbol,
			Balance:  strconv.FormatInt(t.Balance, 10),
			Decimals: info.Decimals,
		})
	}
	return snapshot, nil
}

// tokenInfo resolves token metadata, falling back to placeholders on failure.
func (m *MirrorClient) tokenInfo(ctx context.Context, tokenID string) tokenInfo {
	if info, ok := m.tokens.Get(tokenID); ok {
		return info
	}
	var out tokenResponse
	if err := m.get(ctx, "/api/v1/tokens/"+url.PathEscape(tokenID), &out); err != nil {
		m.log.WithFields(log.F{"token_id": tokenID, "err": err}).Warn("could not resolve token metadata")
		return tokenInfo{Name: PlaceholderTokenName, Symbol: PlaceholderTokenSymbol}
	}
	decimals, _ := strconv.ParseUint(out.Decimals, 10, 32)
	info := tokenInfo{Name: out.Name, Symbol: out.Symbol, Decimals: uint32(decimals)}
	m.tokens.Add(tokenID, info)
	return info
}

// TopicMessages reads all messages of a topic at or after since, following pagination
func (m *MirrorClient) TopicMessages(ctx context.Context, topicID string, since time.Time) ([]models.TopicMessage, error) {
	path := fmt.Sprintf("/api/v1/topics/%s/messages?limit=%d&order=asc", url.PathEscape(topicID), topicPageLimit)
	if !since.IsZero() {
		path += "&timestamp=gte:" + FormatTimestamp(since)
	}

	messages := []models.TopicMessage{}
	for page := 0; page < maxTopicPages && path != ""; page++ {
		var out topicMessagesResponse
		if err := m.get(ctx, path, &out); err != nil {
			return nil, errors.Wrapf(err, "topic %s", topicID)
		}
		for _, raw := range out.Messages {
			msg, err := decodeMirrorMessage(topicID, raw.SequenceNumber, raw.Message, raw.ConsensusTimestamp, raw.RunningHash)
			if err != nil {
				return nil, errors.Wrapf(err, "topic %s message %d", topicID, raw.SequenceNumber)
			}
			messages = append(messages, msg)
		}
		path = ""
		if out.Links.Next != nil {
			path = *out.Links.Next
		}
	}
	return messages, nil
}

func decodeMirrorMessage(topicID string, seq uint64, message, timestamp, runningHash string) (models.TopicMessage, error) {
	contents, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return models.TopicMessage{}, errors.Wrap(err, "invalid message encoding")
	}
	ts, err := ParseTimestamp(timestamp)
	if err != nil {
		return models.TopicMessage{}, err
	}
	hash, err := base64.StdEncoding.DecodeString(runningHash)
	if err != nil {
		return models.TopicMessage{}, errors.Wrap(err, "invalid running hash encoding")
	}
	return models.TopicMessage{
		TopicID:            topicID,
		SequenceNumber:     seq,
		Contents:           string(contents),
		ConsensusTimestamp: ts,
		RunningHash:        hex.EncodeToString(hash),
	}, nil
}

// ParseTimestamp parses a mirror node "seconds.nanoseconds" timestamp
func ParseTimestamp(s string) (time.Time, error) {
	secPart, nanoPart, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid timestamp %q", s)
	}
	var nanos int64
	if nanoPart != "" {
		if len(nanoPart) > 9 {
			return time.Time{}, errors.Errorf("invalid timestamp %q", s)
		}
		nanoPart += strings.Repeat("0", 9-len(nanoPart))
		if nanos, err = strconv.ParseInt(nanoPart, 10, 64); err != nil {
			return time.Time{}, errors.Errorf("invalid timestamp %q", s)
		}
	}
	return time.Unix(sec, nanos).UTC(), nil
}

// FormatTimestamp renders t in the mirror node "seconds.nanoseconds" form
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%09d", t.Unix(), t.Nanosecond())
}
