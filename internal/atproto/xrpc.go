package atproto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// XRPCClient is a minimal client for the AT Protocol XRPC surface: session
// creation, blob upload and record creation are all this service needs.
type XRPCClient struct {
	host   string
	http   *http.Client
	logger *zap.Logger
}

// NewXRPCClient creates a client for the given PDS host.
func NewXRPCClient(host string, logger *zap.Logger) *XRPCClient {
	return &XRPCClient{
		host:   strings.TrimRight(host, "/"),
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Session holds the credentials returned by a successful login.
type Session struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

// RecordRef is the receipt for a created record.
type RecordRef struct {
	CID string `json:"cid"`
	URI string `json:"uri"`
}

type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateSession logs into the PDS with an identifier and app password.
func (c *XRPCClient) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	var session Session
	if err := c.procedure(ctx, "com.atproto.server.createSession", "", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateRecord writes a record into the repo's app.bsky.feed.post collection.
func (c *XRPCClient) CreateRecord(ctx context.Context, token, repo string, record interface{}) (*RecordRef, error) {
	body := map[string]interface{}{
		"repo":       repo,
		"collection": "app.bsky.feed.post",
		"record":     record,
	}

	var ref RecordRef
	if err := c.procedure(ctx, "com.atproto.repo.createRecord", token, body, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// UploadBlob uploads raw image bytes and returns the blob reference to embed
// in a record.
func (c *XRPCClient) UploadBlob(ctx context.Context, token string, data []byte) (json.RawMessage, error) {
	url := c.host + "/xrpc/com.atproto.repo.uploadBlob"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", http.DetectContentType(data))
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploadBlob: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.responseError("com.atproto.repo.uploadBlob", resp)
	}

	var out struct {
		Blob json.RawMessage `json:"blob"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("uploadBlob: decode response: %w", err)
	}
	return out.Blob, nil
}

// procedure performs a JSON-in JSON-out XRPC procedure call.
func (c *XRPCClient) procedure(ctx context.Context, nsid, token string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", nsid, err)
	}

	url := c.host + "/xrpc/" + nsid
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", nsid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.responseError(nsid, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", nsid, err)
		}
	}
	return nil
}

func (c *XRPCClient) responseError(nsid string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var xe xrpcError
	if err := json.Unmarshal(data, &xe); err == nil && xe.Error != "" {
		return fmt.Errorf("%s: %s: %s", nsid, xe.Error, xe.Message)
	}
	return fmt.Errorf("%s: unexpected status %d", nsid, resp.StatusCode)
}
