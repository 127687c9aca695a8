package client

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event is an event emitted by a call.
type Event struct {
	Seq      uint64          `json:"seq"`
	Index    int             `json:"index"`
	Contract common.Address  `json:"contract"`
	Name     string          `json:"name"`
	Data     json.RawMessage `json:"data"`
}

// Receipt describes a committed call.
type Receipt struct {
	Seq    uint64         `json:"seq"`
	Hash   common.Hash    `json:"hash"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Value  *big.Int       `json:"value"`
	Time   time.Time      `json:"time"`
	Events []Event        `json:"events"`
}

// Result is the outcome of a write.
type Result struct {
	Receipt *Receipt        `json:"receipt"`
	Output  json.RawMessage `json:"output,omitempty"`
}

// DecodeOutput decodes the method output into v.
func (r *Result) DecodeOutput(v any) error {
	if len(r.Output) == 0 {
		return nil
	}
	return json.Unmarshal(r.Output, v)
}

// Contract is a deployed contract.
type Contract struct {
	Name         string         `json:"name"`
	Address      common.Address `json:"address"`
	Owner        common.Address `json:"owner"`
	PendingOwner common.Address `json:"pendingOwner"`
}

// ChainInfo describes the network.
type ChainInfo struct {
	ChainID   uint64     `json:"chainId"`
	PriceWei  string     `json:"priceWei"`
	Time      int64      `json:"time"`
	Contracts []Contract `json:"contracts"`
}

// Contract returns the named contract.
func (c *ChainInfo) Contract(name string) (Contract, bool) {
	for _, ct := range c.Contracts {
		if ct.Name == name {
			return ct, true
		}
	}
	return Contract{}, false
}

// LedgerInfo summarises the ledger.
type LedgerInfo struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	PendingOwner string `json:"pendingOwner,omitempty"`
	PriceWei     string `json:"priceWei"`
	HeldWei      string `json:"heldWei"`
}

// Account is a user's ledger position.
type Account struct {
	Address    string `json:"address"`
	CreditWei  string `json:"creditWei"`
	HasCredit  bool   `json:"hasCredit"`
	UsageCount uint64 `json:"usageCount"`
	Authorized bool   `json:"authorized"`
}

// Reconciliation compares outstanding credit with held currency.
type Reconciliation struct {
	OutstandingWei string `json:"outstandingWei"`
	HeldWei        string `json:"heldWei"`
	ShortfallWei   string `json:"shortfallWei"`
	Balanced       bool   `json:"balanced"`
}

// FeatureRecord is a paid analysis request. Params and Result depend on the
// feature kind.
type FeatureRecord struct {
	Index       uint64          `json:"index"`
	Requester   common.Address  `json:"requester"`
	Target      string          `json:"target"`
	Params      json.RawMessage `json:"params"`
	Payment     *big.Int        `json:"payment"`
	Completed   bool            `json:"completed"`
	Result      json.RawMessage `json:"result"`
	CreatedAt   int64           `json:"createdAt"`
	CompletedAt int64           `json:"completedAt,omitempty"`
}

// Subscription is a monitoring subscription.
type Subscription struct {
	Index      uint64         `json:"index"`
	Owner      common.Address `json:"owner"`
	Target     string         `json:"target"`
	Threshold  int64          `json:"threshold"`
	Active     bool           `json:"active"`
	AlertCount uint64         `json:"alertCount"`
	Payment    *big.Int       `json:"payment"`
	CreatedAt  int64          `json:"createdAt"`
}

// Message is a stored message.
type Message struct {
	ID                 uint64         `json:"id"`
	Sender             common.Address `json:"sender"`
	Recipient          common.Address `json:"recipient"`
	Text               string         `json:"text"`
	CrossChain         bool           `json:"crossChain"`
	DestinationChainID uint64         `json:"destinationChainId,omitempty"`
	Timestamp          int64          `json:"timestamp"`
}

// MessagePage is a window of the global message list.
type MessagePage struct {
	Data   []Message `json:"data"`
	Offset uint64    `json:"offset"`
	Limit  uint64    `json:"limit"`
	Total  uint64    `json:"total"`
}

// Right is a time-bounded right on a domain. ExpiresAt zero never expires.
type Right struct {
	Holder    common.Address `json:"holder"`
	ExpiresAt int64          `json:"expiresAt"`
}

// RightGrant is an entry in a domain's grant history.
type RightGrant struct {
	Right     string         `json:"right"`
	Holder    common.Address `json:"holder"`
	GrantedAt int64          `json:"grantedAt"`
	ExpiresAt int64          `json:"expiresAt"`
}

// Domain is a tokenized domain record.
type Domain struct {
	Name        string           `json:"name"`
	Owner       common.Address   `json:"owner"`
	Tokenized   bool             `json:"tokenized"`
	TokenizedAt int64            `json:"tokenizedAt"`
	Active      bool             `json:"active"`
	Rights      map[string]Right `json:"rights"`
}

// RightCheck answers whether an address holds a right.
type RightCheck struct {
	Name      string `json:"name"`
	Right     string `json:"right"`
	Holder    string `json:"holder"`
	HasRight  bool   `json:"hasRight"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// EventRecord is a journaled event.
type EventRecord struct {
	Seq      uint64          `json:"seq"`
	TxSeq    uint64          `json:"txSeq"`
	Index    int             `json:"index"`
	Contract string          `json:"contract"`
	Name     string          `json:"name"`
	Data     json.RawMessage `json:"data"`
	Time     time.Time       `json:"time"`
}

// EventQuery filters an event listing.
type EventQuery struct {
	Contract string
	Name     string
	TxSeq    uint64
	Limit    int
	Cursor   string
}

// EventsPage is a page of events.
type EventsPage struct {
	Data       []EventRecord `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// Pagination contains pagination info
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type list[T any] struct {
	Data []T `json:"data"`
}
