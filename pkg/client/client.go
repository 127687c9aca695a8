// Package client provides a Go client for the DomaGuardian API.
package client

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/domaguardian/domaguardian/internal/auth"
)

// Client is a DomaGuardian API client
type Client struct {
	baseURL    string
	key        *ecdsa.PrivateKey
	address    common.Address
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithSigner signs every write with key.
func WithSigner(key *ecdsa.PrivateKey) Option {
	return func(client *Client) {
		client.key = key
		client.address = crypto.PubkeyToAddress(key.PublicKey)
	}
}

// WithAddress sends writes as addr without a signature. Only servers running
// with auth disabled accept them.
func WithAddress(addr common.Address) Option {
	return func(client *Client) {
		client.address = addr
	}
}

// New creates a new DomaGuardian client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Address returns the caller address writes are sent as.
func (c *Client) Address() common.Address {
	return c.address
}

// APIError represents an API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Chain returns the network description.
func (c *Client) Chain(ctx context.Context) (*ChainInfo, error) {
	var resp ChainInfo
	if err := c.get(ctx, "/api/v1/chain", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events lists journaled events.
func (c *Client) Events(ctx context.Context, q EventQuery) (*EventsPage, error) {
	query := url.Values{}
	if q.Contract != "" {
		query.Set("contract", q.Contract)
	}
	if q.Name != "" {
		query.Set("name", q.Name)
	}
	if q.TxSeq != 0 {
		query.Set("txSeq", strconv.FormatUint(q.TxSeq, 10))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		query.Set("cursor", q.Cursor)
	}
	var resp EventsPage
	if err := c.get(ctx, "/api/v1/events", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TransferOwnership nominates newOwner for contract.
func (c *Client) TransferOwnership(ctx context.Context, contract string, newOwner common.Address) (*Result, error) {
	path := fmt.Sprintf("/api/v1/contracts/%s/ownership/transfer", url.PathEscape(contract))
	return c.write(ctx, http.MethodPost, path, map[string]string{"newOwner": newOwner.Hex()})
}

// AcceptOwnership completes a pending transfer of contract to the caller.
func (c *Client) AcceptOwnership(ctx context.Context, contract string) (*Result, error) {
	path := fmt.Sprintf("/api/v1/contracts/%s/ownership/accept", url.PathEscape(contract))
	return c.write(ctx, http.MethodPost, path, nil)
}

func weiString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

// write sends a state-changing request, signed when a key is configured.
func (c *Client) write(ctx context.Context, method, path string, body any) (*Result, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(req, payload); err != nil {
		return nil, err
	}

	var res Result
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) authorize(req *http.Request, body []byte) error {
	if c.address == (common.Address{}) {
		return nil
	}
	req.Header.Set(auth.HeaderAddress, c.address.Hex())
	if c.key == nil {
		return nil
	}

	// Servers accept each signed payload once.
	ts := c.now().Unix()
	nonce := uuid.NewString()
	sig, err := auth.Sign(c.key, req.Method, req.URL.Path, ts, nonce, body)
	if err != nil {
		return fmt.Errorf("signing request: %w", err)
	}
	req.Header.Set(auth.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(auth.HeaderNonce, nonce)
	req.Header.Set(auth.HeaderSignature, sig)
	return nil
}

func (c *Client) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: resp.Status}
	}
	errResp.Error.Status = resp.StatusCode
	return &errResp.Error
}
