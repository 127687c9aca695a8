package metrics

import (
	"math/big"
	"time"
)

// ContractCall records a submitted contract call.
func ContractCall(contract, method, status string, d time.Duration) {
	if !enabled {
		return
	}
	callsTotal.WithLabelValues(contract, method, status).Inc()
	callDuration.WithLabelValues(contract, method).Observe(d.Seconds())
}

// ContractEvent records a committed contract event.
func ContractEvent(contract, event string) {
	if !enabled {
		return
	}
	eventsTotal.WithLabelValues(contract, event).Inc()
}

// EventPublish records an event batch handed to a sink.
func EventPublish(sink, status string) {
	if !enabled {
		return
	}
	publishTotal.WithLabelValues(sink, status).Inc()
}

// JournalHalted flags that the node stopped accepting writes.
func JournalHalted() {
	if !enabled {
		return
	}
	journalHalted.Set(1)
}

// LedgerReconciliation records the result of a reconciliation run.
func LedgerReconciliation(outstanding, held, shortfall *big.Int) {
	if !enabled {
		return
	}
	ledgerOutstanding.Set(weiFloat(outstanding))
	ledgerHeld.Set(weiFloat(held))
	ledgerShortfall.Set(weiFloat(shortfall))

	result := "balanced"
	if shortfall.Sign() > 0 {
		result = "shortfall"
	}
	reconcileTotal.WithLabelValues(result).Inc()
}

func weiFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
