package transport

import (
	"encoding/json"

	"github.com/domaguardian/domaguardian/internal/node"
	"github.com/domaguardian/domaguardian/internal/storage"
)

// Wei amounts cross the API as decimal strings.

// ErrorResponse is the error envelope of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ChainResponse describes the network.
type ChainResponse struct {
	ChainID   uint64              `json:"chainId"`
	PriceWei  string              `json:"priceWei"`
	Time      int64               `json:"time"`
	Contracts []node.ContractInfo `json:"contracts"`
}

// OwnershipRequest starts an ownership transfer.
type OwnershipRequest struct {
	NewOwner string `json:"newOwner"`
}

// DepositRequest buys one credit.
type DepositRequest struct {
	Value string `json:"value"`
}

// DebitRequest consumes one feature price of a user's credit.
type DebitRequest struct {
	User string `json:"user"`
}

// AuthorizationRequest enables or disables a ledger spender.
type AuthorizationRequest struct {
	Spender string `json:"spender"`
	Enabled bool   `json:"enabled"`
}

// WithdrawRequest withdraws held currency. An empty amount withdraws all.
type WithdrawRequest struct {
	Amount string `json:"amount,omitempty"`
}

// LedgerResponse summarises the ledger.
type LedgerResponse struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	PendingOwner string `json:"pendingOwner,omitempty"`
	PriceWei     string `json:"priceWei"`
	HeldWei      string `json:"heldWei"`
}

// AccountResponse is a user's ledger position.
type AccountResponse struct {
	Address    string `json:"address"`
	CreditWei  string `json:"creditWei"`
	HasCredit  bool   `json:"hasCredit"`
	UsageCount uint64 `json:"usageCount"`
	Authorized bool   `json:"authorized"`
}

// ReconciliationResponse compares outstanding credit with held currency.
type ReconciliationResponse struct {
	OutstandingWei string `json:"outstandingWei"`
	HeldWei        string `json:"heldWei"`
	ShortfallWei   string `json:"shortfallWei"`
	Balanced       bool   `json:"balanced"`
}

// FeatureRequest submits a paid analysis request.
type FeatureRequest struct {
	Target string          `json:"target"`
	Params json.RawMessage `json:"params,omitempty"`
}

// CompleteRequest attaches a result.
type CompleteRequest struct {
	Result json.RawMessage `json:"result"`
}

// SubscribeRequest opens a monitoring subscription.
type SubscribeRequest struct {
	Target    string `json:"target"`
	Threshold int64  `json:"threshold"`
}

// AlertRequest fans an alert out to a target's subscribers.
type AlertRequest struct {
	Target    string `json:"target"`
	AlertKind string `json:"alertKind"`
	Value     int64  `json:"value"`
}

// MessageRequest sends a message.
type MessageRequest struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// CrossChainMessageRequest sends a cross-chain tagged message.
type CrossChainMessageRequest struct {
	DestinationChainID uint64 `json:"destinationChainId"`
	Recipient          string `json:"recipient"`
	Text               string `json:"text"`
}

// TokenizeRequest tokenizes a domain.
type TokenizeRequest struct {
	Name string `json:"name"`
}

// GrantRightRequest grants a time-bounded right.
type GrantRightRequest struct {
	Right           string `json:"right"`
	Holder          string `json:"holder"`
	DurationSeconds uint64 `json:"durationSeconds"`
}

// TransferDomainRequest moves a domain to a new owner.
type TransferDomainRequest struct {
	NewOwner string `json:"newOwner"`
}

// SyncRequest mirrors the external active state.
type SyncRequest struct {
	Active bool `json:"active"`
}

// HasRightResponse answers a right check.
type HasRightResponse struct {
	Name      string `json:"name"`
	Right     string `json:"right"`
	Holder    string `json:"holder"`
	HasRight  bool   `json:"hasRight"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// ListResponse is a list with optional pagination.
type ListResponse[T any] struct {
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes a cursor page.
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// EventsResponse is a page of events.
type EventsResponse = ListResponse[storage.EventRecord]
