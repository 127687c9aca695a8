package feature

import "fmt"

// Kind names a feature.
type Kind string

// Feature kinds served by a request log.
const (
	KindContractRisk    Kind = "contract-risk"
	KindTokenomics      Kind = "tokenomics"
	KindSocialSentiment Kind = "social-sentiment"
)

// Kinds lists the request-log kinds in deployment order.
var Kinds = []Kind{KindContractRisk, KindTokenomics, KindSocialSentiment}

// ParseKind validates s as a request-log kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown feature kind %q", s)
}

// RiskParams carries no options; the target is the contract address.
type RiskParams struct{}

// RiskResult is a contract risk assessment.
type RiskResult struct {
	Score  int64  `json:"score"`
	Report string `json:"report"`
}

// TokenomicsParams selects the token to analyse.
type TokenomicsParams struct {
	Symbol string `json:"symbol,omitempty"`
}

// TokenomicsResult is a tokenomics health assessment.
type TokenomicsResult struct {
	HealthScore int64  `json:"healthScore"`
	Analysis    string `json:"analysis"`
}

// SentimentParams selects the social platform to sample.
type SentimentParams struct {
	Platform string `json:"platform,omitempty"`
}

// SentimentResult is a social sentiment summary.
type SentimentResult struct {
	Sentiment int64  `json:"sentiment"`
	Summary   string `json:"summary"`
}

// Concrete logs.
type (
	RiskLog       = Log[RiskParams, RiskResult]
	TokenomicsLog = Log[TokenomicsParams, TokenomicsResult]
	SentimentLog  = Log[SentimentParams, SentimentResult]
)
