package node

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Contract names.
const (
	ContractLedger     = "ledger"
	ContractMonitoring = "monitoring"
	ContractMessaging  = "messaging"
	ContractRegistry   = "registry"
)

// Method names. Feature logs share MethodRequest and MethodComplete.
const (
	MethodTransferOwnership = "transferOwnership"
	MethodAcceptOwnership   = "acceptOwnership"

	MethodDeposit       = "deposit"
	MethodSetAuthorized = "setAuthorized"
	MethodDebit         = "debit"
	MethodWithdraw      = "withdraw"

	MethodRequest  = "request"
	MethodComplete = "complete"

	MethodSubscribe      = "subscribe"
	MethodStopMonitoring = "stopMonitoring"
	MethodTriggerAlert   = "triggerAlert"

	MethodSendMessage           = "sendMessage"
	MethodSendCrossChainMessage = "sendCrossChainMessage"

	MethodTokenize        = "tokenize"
	MethodGrantRight      = "grantRight"
	MethodRevokeRight     = "revokeRight"
	MethodTransferDomain  = "transferDomain"
	MethodSyncActiveState = "syncActiveState"
)

// Call arguments. These are the journaled form of every write.

type TransferOwnershipArgs struct {
	NewOwner common.Address `json:"newOwner"`
}

type SetAuthorizedArgs struct {
	Spender common.Address `json:"spender"`
	Enabled bool           `json:"enabled"`
}

type DebitArgs struct {
	User common.Address `json:"user"`
}

type WithdrawArgs struct {
	// Amount in wei. Zero or absent withdraws everything held.
	Amount *big.Int `json:"amount,omitempty"`
}

type RequestArgs[P any] struct {
	Target string `json:"target"`
	Params P      `json:"params"`
}

type CompleteArgs[R any] struct {
	User   common.Address `json:"user"`
	Index  uint64         `json:"index"`
	Result R              `json:"result"`
}

type SubscribeArgs struct {
	Target    string `json:"target"`
	Threshold int64  `json:"threshold"`
}

type StopMonitoringArgs struct {
	Index uint64 `json:"index"`
}

type TriggerAlertArgs struct {
	Target    string `json:"target"`
	AlertKind string `json:"alertKind"`
	Value     int64  `json:"value"`
}

type SendMessageArgs struct {
	Recipient common.Address `json:"recipient"`
	Text      string         `json:"text"`
}

type SendCrossChainMessageArgs struct {
	DestinationChainID uint64         `json:"destinationChainId"`
	Recipient          common.Address `json:"recipient"`
	Text               string         `json:"text"`
}

type TokenizeArgs struct {
	Name string `json:"name"`
}

type GrantRightArgs struct {
	Name            string         `json:"name"`
	Right           string         `json:"right"`
	Holder          common.Address `json:"holder"`
	DurationSeconds uint64         `json:"durationSeconds"`
}

type RevokeRightArgs struct {
	Name  string `json:"name"`
	Right string `json:"right"`
}

type TransferDomainArgs struct {
	Name     string         `json:"name"`
	NewOwner common.Address `json:"newOwner"`
}

type SyncActiveStateArgs struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}
