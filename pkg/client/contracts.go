package client

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger returns the ledger summary.
func (c *Client) Ledger(ctx context.Context) (*LedgerInfo, error) {
	var resp LedgerInfo
	if err := c.get(ctx, "/api/v1/ledger", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Account returns the ledger position of addr.
func (c *Client) Account(ctx context.Context, addr common.Address) (*Account, error) {
	var resp Account
	if err := c.get(ctx, "/api/v1/ledger/accounts/"+addr.Hex(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reconciliation compares outstanding credit with held currency.
func (c *Client) Reconciliation(ctx context.Context) (*Reconciliation, error) {
	var resp Reconciliation
	if err := c.get(ctx, "/api/v1/ledger/reconciliation", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Deposit buys one credit. value must equal the feature price.
func (c *Client) Deposit(ctx context.Context, value *big.Int) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/ledger/deposit", map[string]string{"value": weiString(value)})
}

// SetAuthorized enables or disables a ledger spender.
func (c *Client) SetAuthorized(ctx context.Context, spender common.Address, enabled bool) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/ledger/authorizations", map[string]any{
		"spender": spender.Hex(),
		"enabled": enabled,
	})
}

// Debit consumes one feature price of user's credit. The caller must be an
// authorized spender.
func (c *Client) Debit(ctx context.Context, user common.Address) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/ledger/debit", map[string]string{
		"user": user.Hex(),
	})
}

// Withdraw sends held currency to the owner. A nil amount withdraws all.
func (c *Client) Withdraw(ctx context.Context, amount *big.Int) (*Result, error) {
	body := map[string]string{}
	if amount != nil {
		body["amount"] = amount.String()
	}
	return c.write(ctx, http.MethodPost, "/api/v1/ledger/withdraw", body)
}

// Request submits a paid analysis request of kind for target.
func (c *Client) Request(ctx context.Context, kind, target string, params any) (*Result, error) {
	body := map[string]any{"target": target}
	if params != nil {
		body["params"] = params
	}
	return c.write(ctx, http.MethodPost, "/api/v1/features/"+url.PathEscape(kind)+"/requests", body)
}

// Complete attaches the result of request index of user.
func (c *Client) Complete(ctx context.Context, kind string, user common.Address, index uint64, result any) (*Result, error) {
	path := fmt.Sprintf("/api/v1/features/%s/requests/%s/%d/complete", url.PathEscape(kind), user.Hex(), index)
	return c.write(ctx, http.MethodPost, path, map[string]any{"result": result})
}

// Requests lists the requests of user for kind.
func (c *Client) Requests(ctx context.Context, kind string, user common.Address) ([]FeatureRecord, error) {
	var resp list[FeatureRecord]
	path := fmt.Sprintf("/api/v1/features/%s/requests/%s", url.PathEscape(kind), user.Hex())
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Pending lists incomplete requests for kind.
func (c *Client) Pending(ctx context.Context, kind string) ([]FeatureRecord, error) {
	var resp list[FeatureRecord]
	if err := c.get(ctx, "/api/v1/features/"+url.PathEscape(kind)+"/pending", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Subscribe opens a monitoring subscription on target.
func (c *Client) Subscribe(ctx context.Context, target string, threshold int64) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/monitoring/subscriptions", map[string]any{
		"target":    target,
		"threshold": threshold,
	})
}

// StopMonitoring deactivates the caller's subscription at index.
func (c *Client) StopMonitoring(ctx context.Context, index uint64) (*Result, error) {
	path := fmt.Sprintf("/api/v1/monitoring/subscriptions/%d/stop", index)
	return c.write(ctx, http.MethodPost, path, nil)
}

// TriggerAlert raises an alert on every active subscription to target.
func (c *Client) TriggerAlert(ctx context.Context, target, alertKind string, value int64) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/monitoring/alerts", map[string]any{
		"target":    target,
		"alertKind": alertKind,
		"value":     value,
	})
}

// Subscriptions lists the subscriptions of user.
func (c *Client) Subscriptions(ctx context.Context, user common.Address) ([]Subscription, error) {
	var resp list[Subscription]
	if err := c.get(ctx, "/api/v1/monitoring/subscriptions/"+user.Hex(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Subscribers lists the subscriber index of target.
func (c *Client) Subscribers(ctx context.Context, target string) ([]common.Address, error) {
	var resp list[common.Address]
	path := "/api/v1/monitoring/targets/" + url.PathEscape(target) + "/subscribers"
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SendMessage sends text to recipient.
func (c *Client) SendMessage(ctx context.Context, recipient common.Address, text string) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/messages", map[string]string{
		"recipient": recipient.Hex(),
		"text":      text,
	})
}

// SendCrossChainMessage records a message bound for another chain.
func (c *Client) SendCrossChainMessage(ctx context.Context, destinationChainID uint64, recipient common.Address, text string) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/messages/cross-chain", map[string]any{
		"destinationChainId": destinationChainID,
		"recipient":          recipient.Hex(),
		"text":               text,
	})
}

// Messages returns a window of the global message list.
func (c *Client) Messages(ctx context.Context, offset, limit uint64) (*MessagePage, error) {
	query := url.Values{}
	query.Set("offset", strconv.FormatUint(offset, 10))
	if limit > 0 {
		query.Set("limit", strconv.FormatUint(limit, 10))
	}
	var resp MessagePage
	if err := c.get(ctx, "/api/v1/messages", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Message returns the message with id.
func (c *Client) Message(ctx context.Context, id uint64) (*Message, error) {
	var resp Message
	if err := c.get(ctx, "/api/v1/messages/"+strconv.FormatUint(id, 10), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SentMessages lists the messages sent by user.
func (c *Client) SentMessages(ctx context.Context, user common.Address) ([]Message, error) {
	var resp list[Message]
	if err := c.get(ctx, "/api/v1/messages/sent/"+user.Hex(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ReceivedMessages lists the same-chain messages received by user.
func (c *Client) ReceivedMessages(ctx context.Context, user common.Address) ([]Message, error) {
	var resp list[Message]
	if err := c.get(ctx, "/api/v1/messages/received/"+user.Hex(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Tokenize tokenizes name to the caller.
func (c *Client) Tokenize(ctx context.Context, name string) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/domains", map[string]string{"name": name})
}

// GrantRight gives right on name to holder for durationSeconds. Zero never
// expires.
func (c *Client) GrantRight(ctx context.Context, name, right string, holder common.Address, durationSeconds uint64) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/domains/"+url.PathEscape(name)+"/rights", map[string]any{
		"right":           right,
		"holder":          holder.Hex(),
		"durationSeconds": durationSeconds,
	})
}

// RevokeRight clears right on name.
func (c *Client) RevokeRight(ctx context.Context, name, right string) (*Result, error) {
	path := "/api/v1/domains/" + url.PathEscape(name) + "/rights/" + url.PathEscape(right)
	return c.write(ctx, http.MethodDelete, path, nil)
}

// TransferDomain moves name to newOwner.
func (c *Client) TransferDomain(ctx context.Context, name string, newOwner common.Address) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/domains/"+url.PathEscape(name)+"/transfer", map[string]string{
		"newOwner": newOwner.Hex(),
	})
}

// SyncActiveState mirrors the external active state of name.
func (c *Client) SyncActiveState(ctx context.Context, name string, active bool) (*Result, error) {
	return c.write(ctx, http.MethodPost, "/api/v1/domains/"+url.PathEscape(name)+"/sync", map[string]bool{
		"active": active,
	})
}

// Domains lists every tokenized name.
func (c *Client) Domains(ctx context.Context) ([]string, error) {
	var resp list[string]
	if err := c.get(ctx, "/api/v1/domains", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Domain returns the record for name.
func (c *Client) Domain(ctx context.Context, name string) (*Domain, error) {
	var resp Domain
	if err := c.get(ctx, "/api/v1/domains/"+url.PathEscape(name), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RightHistory returns the grant history of name.
func (c *Client) RightHistory(ctx context.Context, name string) ([]RightGrant, error) {
	var resp list[RightGrant]
	if err := c.get(ctx, "/api/v1/domains/"+url.PathEscape(name)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// HasRight reports whether holder holds a live right on name.
func (c *Client) HasRight(ctx context.Context, name, right string, holder common.Address) (*RightCheck, error) {
	path := "/api/v1/domains/" + url.PathEscape(name) + "/rights/" + url.PathEscape(right)
	var resp RightCheck
	if err := c.get(ctx, path, url.Values{"holder": {holder.Hex()}}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DomainsOf lists the names owned by owner.
func (c *Client) DomainsOf(ctx context.Context, owner common.Address) ([]string, error) {
	var resp list[string]
	if err := c.get(ctx, "/api/v1/owners/"+owner.Hex()+"/domains", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
