// Package auth0 は Auth0 互換 IdP の HTTP API を identity.Provider として提供します。
package auth0

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ogurasousui/employer-onboarding/internal/core/identity"
	"github.com/ogurasousui/employer-onboarding/internal/platform/cache"
	"github.com/ogurasousui/employer-onboarding/internal/platform/config"
	"github.com/ogurasousui/employer-onboarding/internal/platform/logger"
)

const (
	externalIDPrefix  = "auth0|"
	tokenCacheKey     = "identity:management_token"
	tokenExpiryLeeway = time.Minute
	maxErrorBody      = 4 << 10
)

// ErrUnexpectedStatus は IdP が 2xx 以外を返した場合のエラーです。
var ErrUnexpectedStatus = errors.New("auth0: unexpected status")

// StatusError は IdP のエラー応答です。
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("auth0: %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Client は Auth0 の Authentication API と Management API のクライアントです。
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	audience     string
	connection   string

	http         *http.Client
	tokenTimeout time.Duration
	cache        cache.Cache
	limiter      *rate.Limiter
	tokens       singleflight.Group
	logger       *zap.Logger
}

var _ identity.Provider = (*Client)(nil)

// Option は Client の生成オプションです。
type Option func(*Client)

// WithHTTPClient は利用する http.Client を差し替えます。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger はロガーを差し替えます。
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New は Client を生成します。store は管理 API トークンの保持に使います。
func New(cfg config.IdentityConfig, store cache.Cache, opts ...Option) *Client {
	if store == nil {
		store = cache.NewMemory("")
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		audience:     cfg.Audience,
		connection:   cfg.Connection,
		http:         &http.Client{Timeout: timeout},
		tokenTimeout: timeout,
		cache:        store,
		limiter:      rate.NewLimiter(limit, burst),
		logger:       logger.Named("auth0"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type signupRequest struct {
	ClientID   string `json:"client_id"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name,omitempty"`
	Connection string `json:"connection"`
}

type signupResponse struct {
	ID string `json:"_id"`
}

// Provision はデータベース接続にユーザーを登録し、外部 ID を返します。
// IdP 側の拒否や通信失敗は空文字で返し、呼び出し元に業務エラーとして扱わせます。
func (c *Client) Provision(ctx context.Context, in identity.SignUp) (string, error) {
	c.logger.Info("creating identity account")
	c.logger.Debug("identity signup request", zap.String("email", in.Email))

	var out signupResponse
	err := c.doJSON(ctx, "signup", http.MethodPost, "/dbconnections/signup", "", signupRequest{
		ClientID:   c.clientID,
		Email:      in.Email,
		Password:   in.Password,
		Name:       in.Name,
		Connection: c.connection,
	}, &out)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		c.logger.Error("identity signup failed", zap.Error(err))
		return "", nil
	}
	if out.ID == "" {
		c.logger.Warn("identity signup returned no id")
		return "", nil
	}

	externalID := externalIDPrefix + out.ID
	c.logger.Info("identity account created", logger.ExternalID(externalID))
	return externalID, nil
}

type userResponse struct {
	Picture string `json:"picture"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// FetchProfile は管理 API からプロフィールを取得します。
func (c *Client) FetchProfile(ctx context.Context, externalID string) (identity.Profile, error) {
	var out userResponse
	if err := c.management(ctx, "get user", http.MethodGet, externalID, nil, &out); err != nil {
		return identity.Profile{}, err
	}
	return identity.Profile{Picture: out.Picture, Email: out.Email, Name: out.Name}, nil
}

// UpdatePassword は外部アカウントのパスワードを変更します。
func (c *Client) UpdatePassword(ctx context.Context, externalID, password string) error {
	body := map[string]string{"password": password, "connection": c.connection}
	if err := c.management(ctx, "update password", http.MethodPatch, externalID, body, nil); err != nil {
		return err
	}
	c.logger.Info("identity password updated", logger.ExternalID(externalID))
	return nil
}

// Deprovision は外部アカウントを削除します。
func (c *Client) Deprovision(ctx context.Context, externalID string) error {
	if err := c.management(ctx, "delete user", http.MethodDelete, externalID, nil, nil); err != nil {
		return err
	}
	c.logger.Info("identity account deleted", logger.ExternalID(externalID))
	return nil
}

func (c *Client) management(ctx context.Context, op, method, externalID string, body, out any) error {
	if strings.TrimSpace(externalID) == "" {
		return fmt.Errorf("auth0: %s: external id is empty", op)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("auth0: %s: %w", op, err)
	}

	token, err := c.managementToken(ctx)
	if err != nil {
		return err
	}

	path := "/api/v2/users/" + url.PathEscape(externalID)
	err = c.doJSON(ctx, op, method, path, token, body, out)

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusUnauthorized {
		// 失効したトークンを次回の呼び出しで取り直す
		if delErr := c.cache.Delete(context.WithoutCancel(ctx), tokenCacheKey); delErr != nil {
			c.logger.Warn("failed to drop management token", zap.Error(delErr))
		}
	}
	return err
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (c *Client) managementToken(ctx context.Context) (string, error) {
	token, err := c.cache.Get(ctx, tokenCacheKey)
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		c.logger.Warn("token cache unavailable", zap.Error(err))
	}

	// 取得は待機中の全呼び出しで共有するため、最初の呼び出し元のキャンセルから切り離す
	ch := c.tokens.DoChan(tokenCacheKey, func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.tokenTimeout)
		defer cancel()
		return c.requestToken(refreshCtx)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("auth0: token: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) requestToken(ctx context.Context) (string, error) {
	c.logger.Info("requesting management token")

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("audience", c.audience)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("auth0: token: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out tokenResponse
	if err := c.do(req, "token", &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("auth0: token: empty access token")
	}

	ttl := time.Duration(out.ExpiresIn)*time.Second - tokenExpiryLeeway
	if ttl > 0 {
		if err := c.cache.Set(ctx, tokenCacheKey, out.AccessToken, ttl); err != nil {
			c.logger.Warn("failed to cache management token", zap.Error(err))
		}
	}
	return out.AccessToken, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("auth0: %s: encode: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("auth0: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth0: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("auth0: %s: decode: %w", op, err)
	}
	return nil
}
