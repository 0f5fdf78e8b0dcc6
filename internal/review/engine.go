package review

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/cache"
	"github.com/dshills/juris/internal/config"
	"github.com/dshills/juris/internal/logging"
	"github.com/dshills/juris/internal/prompts"
	"github.com/dshills/juris/internal/providers"
	"github.com/dshills/juris/internal/redact"
)

// ErrDuplicateClauseKey is returned when a contract repeats a clause key.
var ErrDuplicateClauseKey = eris.New("duplicate clause key")

// Completer issues one chat completion. Options carry a content check that
// the completer applies before accepting a response.
type Completer interface {
	Call(ctx context.Context, systemPrompt, userPrompt string, hits *providers.RateLimitCounter, opts ...providers.CallOption) (string, error)
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	BatchSize      int
	MaxConcurrency int
	Timeout        time.Duration
	RiskThreshold  int
	Prompts        *prompts.Catalog
	// Cache, when enabled, stores batch responses that parsed cleanly.
	Cache *cache.Cache
	// Model is part of the cache key.
	Model  string
	Redact bool
	Logger *zap.Logger
}

// Engine analyzes contracts clause by clause.
type Engine struct {
	client Completer
	opts   Options
	log    *zap.Logger
	now    func() time.Time
}

// New creates an Engine.
func New(client Completer, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDeadline
	}
	if opts.Prompts == nil {
		opts.Prompts = prompts.Default()
	}
	return &Engine{
		client: client,
		opts:   opts,
		log:    logging.OrGlobal(opts.Logger).Named("review"),
		now:    time.Now,
	}
}

// FromConfig builds an Engine from cfg around client.
func FromConfig(cfg config.Config, client Completer, log *zap.Logger) (*Engine, error) {
	catalog, err := prompts.Load(cfg.Prompts.File)
	if err != nil {
		return nil, eris.Wrap(err, "loading prompts")
	}
	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, eris.Wrap(err, "opening cache")
	}
	return New(client, Options{
		BatchSize:      cfg.Review.BatchSize,
		MaxConcurrency: cfg.Review.MaxConcurrency,
		Timeout:        cfg.Review.Timeout(),
		RiskThreshold:  cfg.Review.RiskThreshold,
		Prompts:        catalog,
		Cache:          c,
		Model:          cfg.Provider.Model,
		Redact:         cfg.Privacy.RedactSecrets,
		Logger:         log,
	}), nil
}

// Analyze reviews every clause of contract and generates a checklist. Batch
// failures, malformed output and the deadline only degrade the result; the
// only error is invalid input.
func (e *Engine) Analyze(ctx context.Context, contract Contract, ct prompts.ContractType) (*Result, error) {
	if err := checkKeys(contract.Clauses); err != nil {
		return nil, err
	}

	systemPrompt := e.opts.Prompts.Analysis(ct)
	batches := SplitIntoBatches(contract.Clauses, e.opts.BatchSize)
	parser := Parser{Threshold: e.opts.RiskThreshold, Logger: e.log}
	var hits providers.RateLimitCounter

	e.log.Info("starting review",
		zap.String("contract_type", string(ct)),
		zap.Int("clauses", len(contract.Clauses)),
		zap.Int("batches", len(batches)))

	sched := Scheduler{
		MaxConcurrency: e.opts.MaxConcurrency,
		Deadline:       e.opts.Timeout,
		Logger:         e.log,
	}.Run(ctx, batches, func(ctx context.Context, b Batch) ([]RiskyClause, error) {
		return e.analyzeBatch(ctx, parser, systemPrompt, b, &hits)
	})

	var findings []RiskyClause
	for _, o := range sched.Outcomes {
		findings = append(findings, o.Findings...)
	}
	if findings == nil {
		findings = []RiskyClause{}
	}

	checklist := e.checklist(ctx, findings, &hits)
	analytics := Aggregate(len(contract.Clauses), sched, hits.Load())

	e.log.Info("review complete",
		zap.Int("risky_clauses", analytics.RiskyClauses),
		zap.Int("attempted_batches", analytics.TotalBatches),
		zap.Int("failed_batches", sched.Failed()),
		zap.Int("rate_limit_hits", analytics.RateLimitHits),
		zap.Float64("success_rate", analytics.SuccessRate))

	return &Result{
		ID:            uuid.NewString(),
		ContractID:    contract.ID,
		ContractTitle: contract.Title,
		ContractType:  ct,
		Pages:         contract.Pages,
		Findings:      findings,
		Checklist:     checklist,
		Summary:       ComputeSummary(findings),
		Analytics:     analytics,
		CreatedAt:     e.now().UTC(),
	}, nil
}

func (e *Engine) analyzeBatch(ctx context.Context, parser Parser, systemPrompt string, b Batch, hits *providers.RateLimitCounter) ([]RiskyClause, error) {
	keyToContent := make(map[string]string, len(b.Clauses))
	for _, c := range b.Clauses {
		keyToContent[c.Key] = c.Content
	}
	userPrompt := BuildBatchPrompt(e.outbound(b))

	var cacheKey string
	if e.opts.Cache != nil && e.opts.Cache.Enabled() {
		cacheKey = cache.BuildKey(e.opts.Model, systemPrompt, userPrompt)
		if content, ok := e.opts.Cache.Get(cacheKey); ok {
			if findings, err := parser.Parse(content, keyToContent); err == nil {
				e.log.Debug("batch served from cache", zap.Int("batch", b.Number))
				return findings, nil
			}
		}
	}

	// prose or array-less replies are re-requested; a bad array is not
	content, err := e.client.Call(ctx, systemPrompt, userPrompt, hits, providers.WithContentCheck(CheckShape))
	if err != nil {
		return nil, eris.Wrapf(err, "batch %d", b.Number)
	}
	findings, err := parser.Parse(content, keyToContent)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if err := e.opts.Cache.Put(cacheKey, e.opts.Model, content); err != nil {
			e.log.Warn("cache write failed", zap.Int("batch", b.Number), zap.Error(err))
		}
	}
	return findings, nil
}

// outbound returns the batch clauses as they should be sent to the model.
func (e *Engine) outbound(b Batch) []Clause {
	if !e.opts.Redact {
		return b.Clauses
	}
	out := make([]Clause, len(b.Clauses))
	total := 0
	for i, c := range b.Clauses {
		text, n := redact.Text(c.Content)
		total += n
		out[i] = Clause{Key: c.Key, Content: text, Location: c.Location}
	}
	if total > 0 {
		e.log.Info("redacted sensitive values", zap.Int("batch", b.Number), zap.Int("count", total))
	}
	return out
}

func (e *Engine) checklist(ctx context.Context, findings []RiskyClause, hits *providers.RateLimitCounter) string {
	content, err := e.client.Call(ctx, ChecklistSystemPrompt, BuildChecklistPrompt(findings), hits)
	if err != nil {
		e.log.Error("error generating summary checklist", zap.Error(err))
		return ChecklistFailed
	}
	cleaned := cleanChecklist(content)
	if cleaned == "" {
		e.log.Error("no usable content for summary checklist")
		return ChecklistFailed
	}
	return cleaned
}

var (
	jsonFence = regexp.MustCompile("```json")
	fence     = regexp.MustCompile("```")
)

// cleanChecklist strips code fences from bullet-point output, or reduces
// JSON-looking output to its array.
func cleanChecklist(content string) string {
	if looksLikeJSON(content) {
		array, ok := extractArray(content)
		if !ok {
			return ""
		}
		return strings.TrimSpace(array)
	}
	content = jsonFence.ReplaceAllString(content, "")
	content = fence.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

func checkKeys(clauses []Clause) error {
	seen := make(map[string]struct{}, len(clauses))
	for _, c := range clauses {
		if _, dup := seen[c.Key]; dup {
			return eris.Wrapf(ErrDuplicateClauseKey, "clause key %q", c.Key)
		}
		seen[c.Key] = struct{}{}
	}
	return nil
}
