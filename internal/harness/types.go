package harness

import "github.com/roach88/metashare/internal/decode"

// TraceEvent records the outcome of decoding one transaction.
type TraceEvent struct {
	// Tx is the scenario name of the transaction.
	Tx string `json:"tx"`

	// Source is "block" or "mempool".
	Source string `json:"source"`

	// Skip is the skip reason, if the transaction was passed over.
	Skip string `json:"skip,omitempty"`

	// Error is the error code, if decoding failed.
	Error string `json:"error,omitempty"`

	Events []decode.Event `json:"events"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per decoded transaction, in decode order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends the outcome of one transaction.
func (r *Result) AddTrace(ev TraceEvent) {
	if ev.Events == nil {
		ev.Events = []decode.Event{}
	}
	r.Trace = append(r.Trace, ev)
}
