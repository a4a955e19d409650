package inject

import "github.com/modforge/modforge/pkg/sequence"

// Outcome classifies what happened to one entity during a pass.
type Outcome uint8

const (
	// OutcomeInjected means the entity was written into the host store.
	OutcomeInjected Outcome = iota
	// OutcomeSkipped means the entity was already present; a no-op success.
	OutcomeSkipped
	// OutcomeDropped means the entity failed and was permanently removed
	// from its registry.
	OutcomeDropped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInjected:
		return "injected"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Result is the per-entity outcome of a pass.
type Result struct {
	Kind    string
	Name    string
	Outcome Outcome
	Err     error
}

// Report accumulates the outcomes of one full injection pass over all
// registries. It is the payload of the RegistrationComplete notification.
type Report struct {
	Results []Result
}

func (r *Report) record(kind, name string, outcome Outcome, err error) {
	r.Results = append(r.Results, Result{Kind: kind, Name: name, Outcome: outcome, Err: err})
}

func (r *Report) count(o Outcome) int {
	return sequence.From(r.Results).
		Filter(func(res Result) bool { return res.Outcome == o }).
		Count()
}

func (r *Report) Injected() int { return r.count(OutcomeInjected) }
func (r *Report) Skipped() int  { return r.count(OutcomeSkipped) }
func (r *Report) Dropped() int  { return r.count(OutcomeDropped) }

// Failures returns the dropped results, with their errors.
func (r *Report) Failures() []Result {
	return sequence.From(r.Results).
		Filter(func(res Result) bool { return res.Outcome == OutcomeDropped }).
		Collect()
}
