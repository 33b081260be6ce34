// Package progress implements the per-request ordered, resumable
// message stream over which pipeline events are published.
package progress

import (
	"encoding/json"
	"time"
)

// Kind discriminates progress message payloads.
type Kind string

const (
	// KindConnectionEstablished is sent to a subscriber on attach.
	KindConnectionEstablished Kind = "connection_established"
	// KindHeartbeat keeps idle subscriptions alive. Heartbeats are not
	// persisted and carry no sequence number.
	KindHeartbeat Kind = "heartbeat"

	KindAnalysisStarted       Kind = "analysis_started"
	KindAnalysisComplete      Kind = "analysis_complete"
	KindDecompositionComplete Kind = "decomposition_complete"
	KindRoutingComplete       Kind = "routing_complete"
	KindExecutionProgress     Kind = "execution_progress"
	KindArbitrationDecision   Kind = "arbitration_decision"
	KindSynthesisStarted      Kind = "synthesis_started"
	KindFinalResponse         Kind = "final_response"
	KindError                 Kind = "error"
	KindCancelled             Kind = "cancelled"

	// KindCostDiscrepancy reports an estimate that missed by more than
	// the configured threshold. Operational visibility only.
	KindCostDiscrepancy Kind = "cost_discrepancy"
)

// Message is one persisted progress event. Seq numbers are dense and
// strictly increasing within a request, starting at 1.
type Message struct {
	Seq       int64           `json:"seq"`
	RequestID string          `json:"request_id"`
	Kind      Kind            `json:"kind"`
	Timestamp time.Time       `json:"ts"`
	Data      json.RawMessage `json:"data,omitempty"`
}
