package node

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/domaguardian/domaguardian/internal/feature"
	"github.com/domaguardian/domaguardian/internal/ledger"
	"github.com/domaguardian/domaguardian/internal/messaging"
	"github.com/domaguardian/domaguardian/internal/monitoring"
	"github.com/domaguardian/domaguardian/internal/registry"
)

// State is the set of deployed contracts. It is only valid inside Read.
type State struct {
	ChainID uint64
	Now     time.Time

	Ledger     *ledger.Ledger
	Risk       *feature.RiskLog
	Tokenomics *feature.TokenomicsLog
	Sentiment  *feature.SentimentLog
	Monitor    *monitoring.Monitor
	Messaging  *messaging.Log
	Registry   *registry.Registry
}

// ContractInfo describes a deployed contract.
type ContractInfo struct {
	Name         string         `json:"name"`
	Address      common.Address `json:"address"`
	Owner        common.Address `json:"owner"`
	PendingOwner common.Address `json:"pendingOwner"`
}

type contract interface {
	Address() common.Address
	Owner() common.Address
	PendingOwner() common.Address
}

// Contracts lists every contract in deployment order.
func (s *State) Contracts() []ContractInfo {
	entries := []struct {
		name string
		c    contract
	}{
		{ContractLedger, s.Ledger},
		{string(feature.KindContractRisk), s.Risk},
		{string(feature.KindTokenomics), s.Tokenomics},
		{string(feature.KindSocialSentiment), s.Sentiment},
		{ContractMonitoring, s.Monitor},
		{ContractMessaging, s.Messaging},
		{ContractRegistry, s.Registry},
	}
	out := make([]ContractInfo, len(entries))
	for i, e := range entries {
		out[i] = ContractInfo{
			Name:         e.name,
			Address:      e.c.Address(),
			Owner:        e.c.Owner(),
			PendingOwner: e.c.PendingOwner(),
		}
	}
	return out
}

// FeatureView is the kind-independent read side of a feature log.
type FeatureView interface {
	Kind() feature.Kind
	Address() common.Address
	Owner() common.Address
	Price() *big.Int
	// RecordsOf returns the records of user as []feature.Record[P, R].
	RecordsOf(user common.Address) any
	// PendingRecords returns incomplete records in submission order.
	PendingRecords() any
}

type featureView[P, R any] struct {
	*feature.Log[P, R]
}

func (v featureView[P, R]) RecordsOf(user common.Address) any {
	return v.Records(user)
}

func (v featureView[P, R]) PendingRecords() any {
	return v.Pending()
}

// Feature returns the log for kind.
func (s *State) Feature(kind feature.Kind) (FeatureView, bool) {
	switch kind {
	case feature.KindContractRisk:
		return featureView[feature.RiskParams, feature.RiskResult]{s.Risk}, true
	case feature.KindTokenomics:
		return featureView[feature.TokenomicsParams, feature.TokenomicsResult]{s.Tokenomics}, true
	case feature.KindSocialSentiment:
		return featureView[feature.SentimentParams, feature.SentimentResult]{s.Sentiment}, true
	}
	return nil, false
}
