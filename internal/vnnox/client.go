// Package vnnox is a client for the VNNOX terminal control API.
package vnnox

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://api.vnnox.com"
	DefaultTimeout = 30 * time.Second

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

type Config struct {
	AccessKey    string
	AccessSecret string
	BaseURL      string
	Timeout      time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
}

// Sign computes the request signature:
// base64(HMAC-SHA256(secret, METHOD "\n" PATH "\n" TIMESTAMP "\n" NONCE)).
func Sign(secret, method, path, timestamp, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(method + "\n" + path + "\n" + timestamp + "\n" + nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func terminalPath(terminalID, suffix string) string {
	return "/api/v1/terminals/" + url.PathEscape(terminalID) + suffix
}

// do sends a signed request and decodes the envelope into out.
// Transport failures and non-2xx answers are returned as errors; envelope
// codes are left for the caller to interpret.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("vnnox: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	target := c.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("vnnox: build %s %s: %w", method, path, err)
	}

	timestamp := c.now().UTC().Format(timestampLayout)
	nonce := newNonce()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Key", c.cfg.AccessKey)
	req.Header.Set("X-Signature", Sign(c.cfg.AccessSecret, method, path, timestamp, nonce))
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Nonce", nonce)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("VNNOX request failed")
		return fmt.Errorf("vnnox: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("vnnox: read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env Envelope[json.RawMessage]
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Code = env.Code
			apiErr.Message = env.Message
		}
		log.Error().
			Int("status", resp.StatusCode).
			Int("code", apiErr.Code).
			Str("message", apiErr.Message).
			Str("path", path).
			Msg("VNNOX API error")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("vnnox: decode %s %s: %w", method, path, err)
	}
	return nil
}

func clampPercent(v int) int {
	return max(0, min(100, v))
}

func (c *Client) GetTerminalInfo(ctx context.Context, terminalID string) (Envelope[TerminalInfo], error) {
	var env Envelope[TerminalInfo]
	err := c.do(ctx, http.MethodGet, terminalPath(terminalID, ""), nil, nil, &env)
	return env, err
}

// GetStatus returns the status envelope as-is; a non-zero code is not an
// error here since callers treat it as the terminal being offline.
func (c *Client) GetStatus(ctx context.Context, terminalID string) (Envelope[TerminalStatus], error) {
	var env Envelope[TerminalStatus]
	err := c.do(ctx, http.MethodGet, terminalPath(terminalID, "/status"), nil, nil, &env)
	return env, err
}

func (c *Client) SetBrightness(ctx context.Context, terminalID string, brightness int) (Raw, error) {
	var env Raw
	body := map[string]int{"brightness": clampPercent(brightness)}
	err := c.do(ctx, http.MethodPost, terminalPath(terminalID, "/screen/brightness"), nil, body, &env)
	return env, err
}

func (c *Client) SetVolume(ctx context.Context, terminalID string, volume int) (Raw, error) {
	var env Raw
	body := map[string]int{"volume": clampPercent(volume)}
	err := c.do(ctx, http.MethodPost, terminalPath(terminalID, "/audio/volume"), nil, body, &env)
	return env, err
}

func (c *Client) SetPower(ctx context.Context, terminalID string, power bool) (Raw, error) {
	var env Raw
	body := map[string]bool{"power": power}
	err := c.do(ctx, http.MethodPost, terminalPath(terminalID, "/screen/power"), nil, body, &env)
	return env, err
}

func (c *Client) Reboot(ctx context.Context, terminalID string) (Raw, error) {
	var env Raw
	err := c.do(ctx, http.MethodPost, terminalPath(terminalID, "/reboot"), nil, nil, &env)
	return env, err
}

func (c *Client) GetLogs(ctx context.Context, terminalID string, opts LogOptions) (Envelope[[]LogEntry], error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.StartTime != nil {
		query.Set("startTime", opts.StartTime.UTC().Format(timestampLayout))
	}
	var env Envelope[[]LogEntry]
	err := c.do(ctx, http.MethodGet, terminalPath(terminalID, "/logs"), query, nil, &env)
	return env, err
}

// UploadMedia registers a media URL on the terminal. A failure code is
// returned as *APIError since the content id is required to continue.
func (c *Client) UploadMedia(ctx context.Context, terminalID string, media MediaUpload) (Envelope[UploadResult], error) {
	var env Envelope[UploadResult]
	if err := c.do(ctx, http.MethodPost, terminalPath(terminalID, "/media"), nil, media, &env); err != nil {
		return env, err
	}
	if !env.OK() {
		return env, &APIError{StatusCode: http.StatusOK, Code: env.Code, Message: env.Message}
	}
	return env, nil
}

func (c *Client) PublishContent(ctx context.Context, terminalID, contentID string) error {
	var env Raw
	body := map[string]string{"contentId": contentID}
	if err := c.do(ctx, http.MethodPost, terminalPath(terminalID, "/publish"), nil, body, &env); err != nil {
		return err
	}
	if !env.OK() {
		return &APIError{StatusCode: http.StatusOK, Code: env.Code, Message: env.Message}
	}
	return nil
}

func (c *Client) GetPlayingContent(ctx context.Context, terminalID string) (PlayingContent, error) {
	var env Envelope[PlayingContent]
	if err := c.do(ctx, http.MethodGet, terminalPath(terminalID, "/playing"), nil, nil, &env); err != nil {
		return PlayingContent{}, err
	}
	if !env.OK() {
		return PlayingContent{}, &APIError{StatusCode: http.StatusOK, Code: env.Code, Message: env.Message}
	}
	return env.Data, nil
}
