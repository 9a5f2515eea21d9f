// Package pipeline orchestrates the three sequential model-backed stages:
// analyze a competitor URL into a service summary, derive six pivot concepts
// from it, and expand one selected concept into a full landing-page document.
// Stages run strictly in order within a request; the only looping is the
// gateway's bounded retry.
package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"pivotlp/internal/core"
	"pivotlp/internal/extract"
	"pivotlp/internal/llm"
	"pivotlp/internal/logger"
	"pivotlp/internal/parser"
)

// Gateway performs one completion request. Satisfied by *llm.Client.
type Gateway interface {
	Complete(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// Fetcher downloads page HTML for the analyze stage. Satisfied by
// *extract.Fetcher. A nil Fetcher disables fetching entirely.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Config carries the per-stage model and retry tuning.
type Config struct {
	Model     string // analyze stage
	FastModel string // pivot and generate stages

	AnalyzeTokens int
	PivotTokens   int
	GenTokens     int

	MaxAttempts int           // analyze and pivot
	BackoffBase time.Duration // analyze and pivot
	GenAttempts int           // generate
	GenBackoff  time.Duration // generate
}

// Pipeline runs the three stages against a gateway and an optional fetcher.
type Pipeline struct {
	gateway Gateway
	fetcher Fetcher
	cfg     Config
}

// New creates a Pipeline. Zero config fields fall back to the tuned defaults
// for each stage.
func New(gateway Gateway, fetcher Fetcher, cfg Config) *Pipeline {
	if cfg.Model == "" {
		cfg.Model = llm.DefaultModel
	}
	if cfg.FastModel == "" {
		cfg.FastModel = llm.FastModel
	}
	if cfg.AnalyzeTokens <= 0 {
		cfg.AnalyzeTokens = 2000
	}
	if cfg.PivotTokens <= 0 {
		cfg.PivotTokens = 3000
	}
	if cfg.GenTokens <= 0 {
		cfg.GenTokens = 6000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.GenAttempts <= 0 {
		cfg.GenAttempts = 5
	}
	if cfg.GenBackoff <= 0 {
		cfg.GenBackoff = 5 * time.Second
	}
	return &Pipeline{gateway: gateway, fetcher: fetcher, cfg: cfg}
}

// Analyze turns a competitor URL into a structured service summary. The page
// fetch is best-effort: on failure the stage proceeds in inference-only mode.
func (p *Pipeline) Analyze(ctx context.Context, rawURL string) (core.ServiceSummary, error) {
	var summary core.ServiceSummary

	if err := validateURL(rawURL); err != nil {
		return summary, err
	}

	digest := ""
	if p.fetcher != nil {
		html, err := p.fetcher.Fetch(ctx, rawURL)
		if err != nil {
			logger.Warn("Page fetch failed, analyzing from URL alone", "url", rawURL, "error", err.Error())
		} else {
			digest = extract.BuildDigest(html).Text()
		}
	}

	out, err := p.gateway.Complete(ctx, analyzePrompt(rawURL, digest), llm.Options{
		Model:       p.cfg.Model,
		MaxTokens:   p.cfg.AnalyzeTokens,
		MaxAttempts: p.cfg.MaxAttempts,
		BackoffBase: p.cfg.BackoffBase,
	})
	if err != nil {
		return summary, err
	}

	if err := parser.Decode(out, &summary); err != nil {
		return summary, err
	}
	if err := summary.Validate(); err != nil {
		return core.ServiceSummary{}, fmt.Errorf("%w: %v", parser.ErrMalformedOutput, err)
	}
	return summary, nil
}

// pivotBatch is the wire shape of the pivot-stage model reply.
type pivotBatch struct {
	Pivots []core.PivotConcept `json:"pivots"`
}

// Pivots derives exactly six pivot concepts, two per category, from a
// service summary.
func (p *Pipeline) Pivots(ctx context.Context, summary core.ServiceSummary) ([]core.PivotConcept, error) {
	if err := summary.Validate(); err != nil {
		return nil, err
	}

	out, err := p.gateway.Complete(ctx, pivotPrompt(summary), llm.Options{
		Model:       p.cfg.FastModel,
		MaxTokens:   p.cfg.PivotTokens,
		MaxAttempts: p.cfg.MaxAttempts,
		BackoffBase: p.cfg.BackoffBase,
	})
	if err != nil {
		return nil, err
	}

	var batch pivotBatch
	if err := parser.Decode(out, &batch); err != nil {
		return nil, err
	}
	if err := validatePivotBatch(batch.Pivots); err != nil {
		return nil, err
	}
	return batch.Pivots, nil
}

// validatePivotBatch enforces the batch shape: six concepts, two per
// category, three differentiators each. Violations are the model's fault.
func validatePivotBatch(pivots []core.PivotConcept) error {
	if len(pivots) != 6 {
		return fmt.Errorf("%w: expected 6 pivot concepts, got %d", parser.ErrMalformedOutput, len(pivots))
	}

	counts := make(map[core.PivotCategory]int)
	for i, pivot := range pivots {
		if pivot.Title == "" {
			return fmt.Errorf("%w: pivot %d has no title", parser.ErrMalformedOutput, i)
		}
		if len(pivot.Differentiators) != 3 {
			return fmt.Errorf("%w: pivot %q has %d differentiators, want 3", parser.ErrMalformedOutput, pivot.Title, len(pivot.Differentiators))
		}
		counts[pivot.Category]++
	}
	for _, category := range core.Categories {
		if counts[category] != 2 {
			return fmt.Errorf("%w: category %s has %d concepts, want 2", parser.ErrMalformedOutput, category, counts[category])
		}
	}
	return nil
}

// GenerateRequest carries the generate-stage inputs. ServiceName and
// TargetCustomer come from the original analyzed service, not the pivot.
type GenerateRequest struct {
	ServiceName    string            `json:"serviceName"`
	TargetCustomer string            `json:"targetCustomer"`
	Pivot          core.PivotConcept `json:"selectedPivot"`
}

// Validate checks the required inputs before any gateway call.
func (r GenerateRequest) Validate() error {
	if r.ServiceName == "" {
		return &core.ValidationError{Field: "serviceName"}
	}
	if r.TargetCustomer == "" {
		return &core.ValidationError{Field: "targetCustomer"}
	}
	if r.Pivot.Title == "" {
		return &core.ValidationError{Field: "selectedPivot"}
	}
	return nil
}

// Generate expands the selected pivot concept into a full landing-page
// document. This stage carries the largest output budget and the most
// patient retry schedule.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) (core.LandingPage, error) {
	var page core.LandingPage

	if err := req.Validate(); err != nil {
		return page, err
	}

	out, err := p.gateway.Complete(ctx, generatePrompt(req.ServiceName, req.TargetCustomer, req.Pivot), llm.Options{
		Model:       p.cfg.FastModel,
		MaxTokens:   p.cfg.GenTokens,
		MaxAttempts: p.cfg.GenAttempts,
		BackoffBase: p.cfg.GenBackoff,
	})
	if err != nil {
		return page, err
	}

	if err := parser.Decode(out, &page); err != nil {
		return core.LandingPage{}, err
	}
	if err := page.Validate(); err != nil {
		return core.LandingPage{}, fmt.Errorf("%w: %v", parser.ErrMalformedOutput, err)
	}
	return page, nil
}

// validateURL checks that rawURL is an absolute http(s) URL. Failure means
// no network call is attempted.
func validateURL(rawURL string) error {
	if rawURL == "" {
		return &core.ValidationError{Field: "url"}
	}
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return &core.ValidationError{Field: "url"}
	}
	return nil
}
