// Package analysis turns an uploaded document into concepts and quiz
// questions. Analyze always returns a usable result: when neither the
// schema-constrained nor the free-form strategy succeeds, the fallback
// dataset is served instead.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/explainer/internal/cache"
	"github.com/kiranshivaraju/explainer/pkg/models"
)

// Result sources reported in Report.Source.
const (
	SourceStrict   = "strict"
	SourceLenient  = "lenient"
	SourceFallback = "fallback"
	SourceCache    = "cache"
)

// FailureKind tags why a strategy did not produce a result.
type FailureKind string

const (
	FailureUnavailable FailureKind = "unavailable"
	FailureGeneration  FailureKind = "generation"
	FailureParse       FailureKind = "parse"
	FailureShape       FailureKind = "shape"
	FailureBounds      FailureKind = "bounds"
	FailureSchema      FailureKind = "schema"
)

// Failure is a tagged strategy failure.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Err: err}
}

func asFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return fail(FailureGeneration, err)
}

// Attempt is the outcome of one strategy: either Result or Failure is set.
type Attempt struct {
	Strategy string
	Result   models.AnalysisResult
	Failure  *Failure
	Tries    int
	Duration time.Duration
}

// Strategy is one way of extracting a result from a document.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, doc models.Document) Attempt
}

// Report describes how a result was produced.
type Report struct {
	Source   string
	Attempts []Attempt
}

// Degraded reports whether the fallback dataset was served.
func (r Report) Degraded() bool { return r.Source == SourceFallback }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStrictAttempts sets how many schema-constrained generations are tried.
// Zero disables the strict strategy.
func WithStrictAttempts(n int) Option {
	return func(p *Pipeline) { p.strictAttempts = n }
}

// WithInferenceTimeout bounds each generation call.
func WithInferenceTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// WithMaxDocumentChars caps the extracted text handed to the provider.
func WithMaxDocumentChars(n int) Option {
	return func(p *Pipeline) { p.maxChars = n }
}

// WithCache stores strict and lenient results in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.cache = c
		p.cacheTTL = ttl
	}
}

// WithStrategies replaces the default strict then lenient ordering.
func WithStrategies(s ...Strategy) Option {
	return func(p *Pipeline) { p.strategies = s }
}

// Pipeline runs its strategies in order until one yields a result.
type Pipeline struct {
	provider       models.AIProvider
	strategies     []Strategy
	strictAttempts int
	timeout        time.Duration
	maxChars       int
	cache          cache.Cache
	cacheTTL       time.Duration
}

// NewPipeline creates a Pipeline generating through provider.
func NewPipeline(provider models.AIProvider, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider:       provider,
		strictAttempts: 2,
		timeout:        120 * time.Second,
		maxChars:       15000,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.strategies == nil {
		p.strategies = []Strategy{
			&StrictStrategy{Provider: provider, Attempts: p.strictAttempts, Timeout: p.timeout},
			&LenientStrategy{Provider: provider, Timeout: p.timeout},
		}
	}
	return p
}

// Analyze extracts concepts and questions from doc. It never fails: when
// every strategy fails the fallback dataset is returned and the report is
// marked degraded.
func (p *Pipeline) Analyze(ctx context.Context, doc models.Document) (models.AnalysisResult, Report) {
	doc = p.prepare(doc)
	key := p.cacheKey(doc)

	if result, ok := p.lookup(ctx, key); ok {
		return result, Report{Source: SourceCache}
	}

	var report Report
	for _, s := range p.strategies {
		if ctx.Err() != nil {
			break
		}
		a := s.Extract(ctx, doc)
		report.Attempts = append(report.Attempts, a)
		if a.Failure == nil {
			report.Source = s.Name()
			slog.Info("document analyzed",
				"document", doc.Name,
				"strategy", s.Name(),
				"tries", a.Tries,
				"duration_ms", a.Duration.Milliseconds(),
			)
			p.remember(ctx, key, a.Result)
			return a.Result, report
		}
		slog.Warn("analysis strategy failed",
			"document", doc.Name,
			"strategy", s.Name(),
			"kind", a.Failure.Kind,
			"error", a.Failure.Err,
		)
	}

	report.Source = SourceFallback
	slog.Warn("serving fallback analysis", "document", doc.Name, "attempts", len(report.Attempts))
	return Fallback(), report
}

// prepare fills doc.Text for providers that cannot read the raw bytes.
func (p *Pipeline) prepare(doc models.Document) models.Document {
	if doc.Text == "" {
		switch {
		case isPDF(doc):
			if doc.MediaType == "" {
				doc.MediaType = mediaTypePDF
			}
			text, err := ExtractText(doc.Data)
			if err != nil {
				slog.Warn("pdf text extraction failed", "document", doc.Name, "error", err)
			}
			doc.Text = text
		case utf8.Valid(doc.Data):
			doc.Text = string(doc.Data)
		}
	}
	doc.Text = truncateRunes(doc.Text, p.maxChars)
	return doc
}

func (p *Pipeline) cacheKey(doc models.Document) string {
	if p.cache == nil {
		return ""
	}
	sum := sha256.New()
	if len(doc.Data) > 0 {
		sum.Write(doc.Data)
	} else {
		sum.Write([]byte(doc.Text))
	}
	return cache.AnalysisKey(p.provider.Name(), hex.EncodeToString(sum.Sum(nil)))
}

func (p *Pipeline) lookup(ctx context.Context, key string) (models.AnalysisResult, bool) {
	if key == "" {
		return models.AnalysisResult{}, false
	}
	raw, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("analysis cache read failed", "error", err)
		return models.AnalysisResult{}, false
	}
	if !ok {
		return models.AnalysisResult{}, false
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil || checkBounds(result, MaxConcepts, MaxQuestions) != nil || result.IsFallback() {
		return models.AnalysisResult{}, false
	}
	return result, true
}

func (p *Pipeline) remember(ctx context.Context, key string, result models.AnalysisResult) {
	if key == "" || result.IsFallback() {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, raw, p.cacheTTL); err != nil {
		slog.Warn("analysis cache write failed", "error", err)
	}
}

// StrictStrategy asks the provider for output constrained to the canonical
// schema and accepts it only if it validates without repair.
type StrictStrategy struct {
	Provider models.AIProvider
	Attempts int
	Timeout  time.Duration
}

func (s *StrictStrategy) Name() string { return SourceStrict }

func (s *StrictStrategy) Extract(ctx context.Context, doc models.Document) Attempt {
	start := time.Now()
	a := Attempt{Strategy: s.Name()}

	if s.Attempts <= 0 {
		a.Failure = fail(FailureUnavailable, errors.New("strict generation disabled"))
		return a
	}
	schema, err := SchemaJSON()
	if err != nil {
		a.Failure = fail(FailureSchema, err)
		return a
	}

	req := models.GenerationRequest{
		System:     systemPrompt,
		Prompt:     strictPrompt,
		Document:   doc,
		SchemaName: SchemaName,
		Schema:     schema,
	}
	for a.Tries < s.Attempts {
		a.Tries++
		raw, err := generate(ctx, s.Timeout, func(ctx context.Context) ([]byte, error) {
			return s.Provider.GenerateStructured(ctx, req)
		})
		if err != nil {
			a.Failure = generationFailure(err)
			if a.Failure.Kind == FailureUnavailable || ctx.Err() != nil {
				break
			}
			continue
		}
		result, err := ValidateStrict(raw)
		if err != nil {
			a.Failure = asFailure(err)
			continue
		}
		a.Result, a.Failure = result, nil
		break
	}
	a.Duration = time.Since(start)
	return a
}

// LenientStrategy asks for free-form text and repairs it with Normalize.
type LenientStrategy struct {
	Provider models.AIProvider
	Timeout  time.Duration
}

func (s *LenientStrategy) Name() string { return SourceLenient }

func (s *LenientStrategy) Extract(ctx context.Context, doc models.Document) Attempt {
	start := time.Now()
	a := Attempt{Strategy: s.Name(), Tries: 1}

	req := models.GenerationRequest{
		System:   systemPrompt,
		Prompt:   lenientPrompt,
		Document: doc,
	}
	text, err := generate(ctx, s.Timeout, func(ctx context.Context) (string, error) {
		return s.Provider.GenerateText(ctx, req)
	})
	if err != nil {
		a.Failure = generationFailure(err)
	} else if result, err := Normalize(text); err != nil {
		a.Failure = asFailure(err)
	} else {
		a.Result = result
	}
	a.Duration = time.Since(start)
	return a
}

func generate[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := call(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, models.ErrInferenceTimeout) {
		err = fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}
	return out, err
}

func generationFailure(err error) *Failure {
	if errors.Is(err, models.ErrStructuredUnsupported) || errors.Is(err, models.ErrProviderUnavailable) {
		return fail(FailureUnavailable, err)
	}
	return fail(FailureGeneration, err)
}
