package core

import "fmt"

// PivotCategory classifies a pivot concept by what it changes about the
// original service.
type PivotCategory string

const (
	// CategoryCustomerPivot keeps the core capability and retargets the customer.
	CategoryCustomerPivot PivotCategory = "customer-pivot"
	// CategoryTechnologyPivot keeps the customer and retargets the problem/technology.
	CategoryTechnologyPivot PivotCategory = "technology-pivot"
	// CategoryRadicalPivot keeps only the brand/concept and reimagines the rest.
	CategoryRadicalPivot PivotCategory = "radical-pivot"
)

// Categories lists the fixed pivot categories in presentation order.
var Categories = []PivotCategory{
	CategoryCustomerPivot,
	CategoryTechnologyPivot,
	CategoryRadicalPivot,
}

// Analysis holds strengths/challenges pairs produced during URL analysis.
type Analysis struct {
	Strengths  []string `json:"strengths"`
	Challenges []string `json:"challenges"`
}

// ServiceSummary is the structured result of analyzing a competitor URL.
// Immutable once produced; never persisted on its own.
type ServiceSummary struct {
	ServiceName      string   `json:"serviceName"`
	TargetCustomer   string   `json:"targetCustomer"`
	ValueProposition string   `json:"valueProposition"`
	Features         []string `json:"features"`
	Category         string   `json:"category,omitempty"`
	CustomerAnalysis Analysis `json:"customerAnalysis,omitempty"`
	ServiceAnalysis  Analysis `json:"serviceAnalysis,omitempty"`
}

// Validate checks the minimum fields the downstream stages depend on.
func (s ServiceSummary) Validate() error {
	if s.ServiceName == "" {
		return &ValidationError{Field: "serviceName"}
	}
	if s.TargetCustomer == "" {
		return &ValidationError{Field: "targetCustomer"}
	}
	if s.ValueProposition == "" {
		return &ValidationError{Field: "valueProposition"}
	}
	if len(s.Features) == 0 {
		return &ValidationError{Field: "features"}
	}
	return nil
}

// PivotConcept is one alternative positioning derived from a ServiceSummary.
// Produced in batches of 6 (2 per category); never persisted.
type PivotConcept struct {
	Category        PivotCategory `json:"category"`
	Title           string        `json:"title"`
	Differentiators []string      `json:"differentiators"`
	TargetAudience  string        `json:"targetAudience"`
	Difference      string        `json:"difference"`
}

// Feature is one landing-page feature block.
type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Benefit     string `json:"benefit,omitempty"`
}

// Step is one onboarding step on the landing page.
type Step struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UseCase is a narrative customer story with quantified results.
type UseCase struct {
	Title     string `json:"title"`
	Persona   string `json:"persona"`
	Situation string `json:"situation"`
	Result    string `json:"result"`
	Quote     string `json:"quote,omitempty"`
}

// BeforeAfter contrasts life before and after adoption.
type BeforeAfter struct {
	Before []string `json:"before"`
	After  []string `json:"after"`
}

// Testimonial is one customer voice with an optional rating out of 5.
type Testimonial struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Content string `json:"content"`
	Result  string `json:"result,omitempty"`
	Rating  int    `json:"rating,omitempty"`
}

// WorkflowEntry describes one moment in a customer's improved daily routine.
type WorkflowEntry struct {
	Time        string `json:"time"`
	Task        string `json:"task"`
	Duration    string `json:"duration"`
	Improvement string `json:"improvement,omitempty"`
}

// LandingPage is the full content document for a generated landing page.
// Created once by the generate stage, immutable thereafter, optionally
// persisted under a share identifier.
type LandingPage struct {
	ServiceName    string          `json:"serviceName"`
	Catchphrase    string          `json:"catchphrase"`
	SubCatchphrase string          `json:"subCatchphrase,omitempty"`
	Problems       []string        `json:"problems"`
	Solution       string          `json:"solution"`
	UseCases       []UseCase       `json:"useCases,omitempty"`
	Features       []Feature       `json:"features"`
	BeforeAfter    *BeforeAfter    `json:"beforeAfter,omitempty"`
	Strengths      []string        `json:"strengths"`
	Testimonials   []Testimonial   `json:"testimonials,omitempty"`
	DailyWorkflow  []WorkflowEntry `json:"dailyWorkflow,omitempty"`
	Steps          []Step          `json:"steps"`
	CTAText        string          `json:"ctaText"`
	CTASubtext     string          `json:"ctaSubtext,omitempty"`
}

// Validate checks the required landing-page fields before the document is
// treated as well-formed. Optional enrichment fields are not checked; exact
// list lengths are a prompt convention, presence is the contract.
func (p LandingPage) Validate() error {
	switch {
	case p.ServiceName == "":
		return &ValidationError{Field: "serviceName"}
	case p.Catchphrase == "":
		return &ValidationError{Field: "catchphrase"}
	case len(p.Problems) == 0:
		return &ValidationError{Field: "problems"}
	case p.Solution == "":
		return &ValidationError{Field: "solution"}
	case len(p.Features) == 0:
		return &ValidationError{Field: "features"}
	case len(p.Strengths) == 0:
		return &ValidationError{Field: "strengths"}
	case len(p.Steps) == 0:
		return &ValidationError{Field: "steps"}
	case p.CTAText == "":
		return &ValidationError{Field: "ctaText"}
	}
	return nil
}

// ValidationError reports a missing or invalid input/output field. It is the
// caller's fault; no network or storage call should have been attempted.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid field: %s", e.Field)
}
