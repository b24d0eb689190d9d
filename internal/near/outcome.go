package near

import (
	"encoding/base64"
	"encoding/json"

	"github.com/holiman/uint256"
)

type ExecutionOutcome struct {
	Logs        []string        `json:"logs"`
	ReceiptIDs  []string        `json:"receipt_ids"`
	GasBurnt    uint64          `json:"gas_burnt"`
	TokensBurnt Amount          `json:"tokens_burnt"`
	ExecutorID  string          `json:"executor_id"`
	Status      json.RawMessage `json:"status"`
}

type ExecutionOutcomeWithID struct {
	ID      string           `json:"id"`
	Outcome ExecutionOutcome `json:"outcome"`
}

// FinalExecutionOutcome is the broadcast_tx_commit result.
type FinalExecutionOutcome struct {
	Status             json.RawMessage          `json:"status"`
	Transaction        json.RawMessage          `json:"transaction"`
	TransactionOutcome ExecutionOutcomeWithID   `json:"transaction_outcome"`
	ReceiptsOutcome    []ExecutionOutcomeWithID `json:"receipts_outcome"`
}

func (o *FinalExecutionOutcome) statusField(name string) json.RawMessage {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(o.Status, &m); err != nil {
		return nil
	}
	return m[name]
}

// Failure returns the raw Failure object, nil when the call did not fail.
func (o *FinalExecutionOutcome) Failure() json.RawMessage {
	return o.statusField("Failure")
}

// SuccessValue decodes the base64 return value of the call.
func (o *FinalExecutionOutcome) SuccessValue() ([]byte, bool) {
	raw := o.statusField("SuccessValue")
	if raw == nil {
		return nil, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	v, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (o *FinalExecutionOutcome) TxHash() string { return o.TransactionOutcome.ID }

// Logs collects the logs emitted by every receipt, in execution order.
func (o *FinalExecutionOutcome) Logs() []string {
	var out []string
	out = append(out, o.TransactionOutcome.Outcome.Logs...)
	for _, r := range o.ReceiptsOutcome {
		out = append(out, r.Outcome.Logs...)
	}
	return out
}

// Totals is the gas and tokens burnt by a transaction and all of its receipts.
type Totals struct {
	Gas    uint64
	Tokens *uint256.Int // yoctoNEAR
}

// TokensNEAR formats the burnt tokens in NEAR at full precision.
func (t Totals) TokensNEAR() string { return FormatAmount(t.Tokens, NominationExp) }

// Aggregate sums gas and tokens over the transaction outcome and every receipt outcome.
func Aggregate(o *FinalExecutionOutcome) Totals {
	tx := o.TransactionOutcome.Outcome
	t := Totals{Gas: tx.GasBurnt, Tokens: tx.TokensBurnt.Int()}
	for _, r := range o.ReceiptsOutcome {
		t.Gas += r.Outcome.GasBurnt
		t.Tokens.Add(t.Tokens, &r.Outcome.TokensBurnt.v)
	}
	return t
}
