package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is the thin adapter to the WeChat Official Account platform. Every
// call follows the platform's two-step pattern: obtain a short-lived access
// credential, then issue the action with it. The client never caches
// credentials; reuse across calls is the caller's choice.
type Client struct {
	logger  *zap.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	RateLimitRPS   int
}

// Credential is a short-lived access token issued by the platform.
type Credential struct {
	AccessToken string
	ExpiresIn   int
}

// PublishResult is the normalized outcome of a freepublish submit call.
// ErrCode 0 means success; any other value is an application-level failure
// described by ErrMsg.
type PublishResult struct {
	ErrCode   int    `json:"errcode"`
	ErrMsg    string `json:"errmsg"`
	PublishID string `json:"publish_id"`
	MsgDataID string `json:"msg_data_id"`
}

// MassSendResult is the normalized outcome of a mass-send call.
type MassSendResult struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	MsgID   string `json:"msg_id"`
}

type accessTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

type publishSubmitRequest struct {
	MediaID string `json:"media_id"`
}

type publishSubmitResponse struct {
	ErrCode   int         `json:"errcode"`
	ErrMsg    string      `json:"errmsg"`
	PublishID json.Number `json:"publish_id"`
	MsgDataID json.Number `json:"msg_data_id"`
}

type massSendRequest struct {
	ToUser  []string `json:"touser"`
	MPNews  mpNews   `json:"mpnews"`
	MsgType string   `json:"msgtype"`
}

type mpNews struct {
	MediaID string `json:"media_id"`
}

type massSendResponse struct {
	ErrCode int         `json:"errcode"`
	ErrMsg  string      `json:"errmsg"`
	MsgID   json.Number `json:"msg_id"`
}

func NewClient(logger *zap.Logger, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.weixin.qq.com"
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.RateLimitRPS == 0 {
		opts.RateLimitRPS = 5
	}

	return &Client{
		logger: logger,
		client: &http.Client{
			Timeout: opts.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitRPS),
		baseURL: opts.BaseURL,
	}
}

// ObtainCredential fetches a fresh access token for the account.
func (c *Client) ObtainCredential(ctx context.Context, appID, appSecret string) (*Credential, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &CredentialError{Err: err}
	}

	url := fmt.Sprintf("%s/cgi-bin/token?grant_type=client_credential&appid=%s&secret=%s",
		c.baseURL, appID, appSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &CredentialError{Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &CredentialError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CredentialError{Err: err}
	}

	var tokenResponse accessTokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, &CredentialError{Err: err}
	}

	if tokenResponse.ErrCode != 0 || tokenResponse.AccessToken == "" {
		return nil, &CredentialError{Code: tokenResponse.ErrCode, Msg: tokenResponse.ErrMsg}
	}

	return &Credential{
		AccessToken: tokenResponse.AccessToken,
		ExpiresIn:   tokenResponse.ExpiresIn,
	}, nil
}

// PublishDraft submits a staged draft for publication. A non-zero ErrCode in
// the returned result is an application-level failure; the error return is
// reserved for transport problems.
func (c *Client) PublishDraft(ctx context.Context, cred *Credential, mediaID string) (*PublishResult, error) {
	url := fmt.Sprintf("%s/cgi-bin/freepublish/submit?access_token=%s", c.baseURL, cred.AccessToken)

	var wire publishSubmitResponse
	if err := c.postJSON(ctx, "publish", url, publishSubmitRequest{MediaID: mediaID}, &wire); err != nil {
		return nil, err
	}

	result := &PublishResult{
		ErrCode:   wire.ErrCode,
		ErrMsg:    wire.ErrMsg,
		PublishID: wire.PublishID.String(),
		MsgDataID: wire.MsgDataID.String(),
	}

	if result.ErrCode != 0 {
		c.logger.Error("WeChat publish API returned error",
			zap.String("media_id", mediaID),
			zap.Int("errcode", result.ErrCode),
			zap.String("errmsg", result.ErrMsg))
	} else {
		c.logger.Info("Draft submitted for publication",
			zap.String("media_id", mediaID),
			zap.String("publish_id", result.PublishID))
	}

	return result, nil
}

// MassSend broadcasts already-published content to all subscribers. An empty
// touser array means the full subscriber base.
func (c *Client) MassSend(ctx context.Context, cred *Credential, publishID string) (*MassSendResult, error) {
	url := fmt.Sprintf("%s/cgi-bin/message/mass/send?access_token=%s", c.baseURL, cred.AccessToken)

	payload := massSendRequest{
		ToUser:  []string{},
		MPNews:  mpNews{MediaID: publishID},
		MsgType: "mpnews",
	}

	var wire massSendResponse
	if err := c.postJSON(ctx, "mass_send", url, payload, &wire); err != nil {
		return nil, err
	}

	result := &MassSendResult{
		ErrCode: wire.ErrCode,
		ErrMsg:  wire.ErrMsg,
		MsgID:   wire.MsgID.String(),
	}

	if result.ErrCode != 0 {
		c.logger.Error("WeChat mass-send API returned error",
			zap.String("publish_id", publishID),
			zap.Int("errcode", result.ErrCode),
			zap.String("errmsg", result.ErrMsg))
	} else {
		c.logger.Info("Mass-send submitted",
			zap.String("publish_id", publishID),
			zap.String("msg_id", result.MsgID))
	}

	return result, nil
}

func (c *Client) postJSON(ctx context.Context, op, url string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: op, Err: err}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return nil
}
