package transaction

// OutcomeKind enumerates the TransactionOutcome sum-type tags. Design
// Note §9 calls for "exceptions for control flow → typed results": the
// teacher's own DryRunExit/CondaSignalInterrupt analogues in
// original_source/conda/exceptions.py become values here instead of
// errors a caller has to type-switch out of an error-handling path.
type OutcomeKind string

const (
	OutcomeApplied   OutcomeKind = "applied"
	OutcomeDryRun    OutcomeKind = "dry_run"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the result of running a Transaction: exactly one of
// Plan (DryRun), Err (Failed), or neither (Applied/Cancelled) is set,
// selected by Kind.
type Outcome struct {
	Kind OutcomeKind
	Plan *Plan // set only for OutcomeDryRun
	Err  error // set only for OutcomeFailed
}

func Applied() Outcome              { return Outcome{Kind: OutcomeApplied} }
func DryRun(p *Plan) Outcome        { return Outcome{Kind: OutcomeDryRun, Plan: p} }
func Cancelled() Outcome            { return Outcome{Kind: OutcomeCancelled} }
func Failed(err error) Outcome      { return Outcome{Kind: OutcomeFailed, Err: err} }

func (o Outcome) IsSuccess() bool {
	return o.Kind == OutcomeApplied || o.Kind == OutcomeDryRun
}
