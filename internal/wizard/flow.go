package wizard

import (
	"hpcredit/internal/domain"
)

// Step names one stage of the wizard.
type Step string

const (
	StepIdentityCapture Step = "identity_capture"
	StepPersonalInfo    Step = "personal_info"
	StepEmployment      Step = "employment"
	StepReferences      Step = "references"
	StepShopping        Step = "shopping"
	StepPlanSelection   Step = "plan_selection"
	StepReview          Step = "review"
	StepDocuments       Step = "documents"
	StepSignConsent     Step = "sign_consent"
)

// Flow describes one wizard shape: the ordered step list and the stride used
// to generate candidate terms. Both supported flows run on the same engine.
type Flow struct {
	Kind       domain.FlowKind
	Steps      []Step
	TermStride int
}

// FullFlow is the nine-step in-branch flow with identity capture, references,
// supporting documents and wet-signature consent.
func FullFlow() *Flow {
	return &Flow{
		Kind: domain.FlowFull,
		Steps: []Step{
			StepIdentityCapture,
			StepPersonalInfo,
			StepEmployment,
			StepReferences,
			StepShopping,
			StepPlanSelection,
			StepReview,
			StepDocuments,
			StepSignConsent,
		},
		TermStride: 3,
	}
}

// CondensedFlow is the five-step flow that submits immediately after review.
func CondensedFlow() *Flow {
	return &Flow{
		Kind: domain.FlowCondensed,
		Steps: []Step{
			StepShopping,
			StepPlanSelection,
			StepPersonalInfo,
			StepEmployment,
			StepReview,
		},
		TermStride: 1,
	}
}

// FlowFor maps a flow kind to its descriptor, defaulting to the full flow.
func FlowFor(kind domain.FlowKind) *Flow {
	if kind == domain.FlowCondensed {
		return CondensedFlow()
	}
	return FullFlow()
}

// IndexOf returns the position of step in the flow, or -1.
func (f *Flow) IndexOf(step Step) int {
	for i, s := range f.Steps {
		if s == step {
			return i
		}
	}
	return -1
}

// TermOptions generates the candidate terms for a product: every TermStride-th
// month inside [MinTermMonths, MaxTermMonths].
func (f *Flow) TermOptions(p *domain.CreditProduct) []int {
	if p == nil || p.MinTermMonths <= 0 || p.MaxTermMonths < p.MinTermMonths {
		return nil
	}
	stride := f.TermStride
	if stride < 1 {
		stride = 1
	}
	var terms []int
	for t := p.MinTermMonths; t <= p.MaxTermMonths; t += stride {
		terms = append(terms, t)
	}
	return terms
}
