package review

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/juris/internal/logging"
)

const (
	// DefaultBatchSize is the number of clauses sent per completion request.
	DefaultBatchSize = 25
	// DefaultMaxConcurrency limits parallel batch calls.
	DefaultMaxConcurrency = 5
	// DefaultDeadline bounds the whole batch phase.
	DefaultDeadline = 60 * time.Second

	tracerName = "github.com/dshills/juris/internal/review"
)

// Batch is an ordered run of clauses with a 1-based number.
type Batch struct {
	Number  int
	Clauses []Clause
}

// SplitIntoBatches splits clauses into sequential batches of at most size
// clauses, preserving order.
func SplitIntoBatches(clauses []Clause, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([]Batch, 0, (len(clauses)+size-1)/size)
	for i := 0; i < len(clauses); i += size {
		end := min(i+size, len(clauses))
		batches = append(batches, Batch{
			Number:  len(batches) + 1,
			Clauses: clauses[i:end],
		})
	}
	return batches
}

// BatchOutcome records how one started batch ended. Err is set for a failed
// batch; Malformed is set when the model answered but nothing usable could be
// parsed.
type BatchOutcome struct {
	Number      int
	ClauseCount int
	Findings    []RiskyClause
	Malformed   bool
	Err         error
	Duration    time.Duration
}

// Failed reports whether the batch exhausted its retries or hit a hard error.
func (o BatchOutcome) Failed() bool { return o.Err != nil }

// SuccessfulClauses is the number of clauses this batch contributes to the
// success rate.
func (o BatchOutcome) SuccessfulClauses() int {
	if o.Failed() || o.Malformed {
		return 0
	}
	return o.ClauseCount
}

// BatchFunc analyzes one batch. Returning an error wrapping
// ErrMalformedResponse marks the batch malformed rather than failed.
type BatchFunc func(ctx context.Context, b Batch) ([]RiskyClause, error)

// Scheduler runs batches with bounded concurrency under a global deadline.
type Scheduler struct {
	MaxConcurrency int
	Deadline       time.Duration
	Logger         *zap.Logger
	Tracer         trace.Tracer
}

// Schedule is the result of a scheduler run.
type Schedule struct {
	// Outcomes holds completed batches ordered by batch number.
	Outcomes []BatchOutcome
	// Attempted counts batches that started before the run ended.
	Attempted int
	// Total is the number of batches submitted.
	Total    int
	TimedOut bool
	Elapsed  time.Duration
}

// Failed returns the number of failed outcomes.
func (s Schedule) Failed() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

// Run executes fn for every batch. It never returns an error: failed batches
// are recorded, and when the deadline elapses completed outcomes are kept while
// in-flight and unstarted batches are abandoned.
func (s Scheduler) Run(ctx context.Context, batches []Batch, fn BatchFunc) Schedule {
	log := logging.OrGlobal(s.Logger)
	tracer := s.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	limit := s.MaxConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrency
	}
	deadline := s.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	ctx, span := tracer.Start(ctx, "review.schedule", trace.WithAttributes(
		attribute.Int("batches.total", len(batches)),
		attribute.Int("batches.max_concurrency", limit),
	))
	defer span.End()

	start := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var (
		mu       sync.Mutex
		outcomes []BatchOutcome
		started  int
		closed   bool
	)

	var g errgroup.Group
	g.SetLimit(limit)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, b := range batches {
			if runCtx.Err() != nil {
				break
			}
			// Go blocks until a slot frees
			g.Go(func() error {
				mu.Lock()
				if closed || runCtx.Err() != nil {
					mu.Unlock()
					return nil
				}
				started++
				mu.Unlock()

				out := runBatch(runCtx, tracer, log, b, fn)

				mu.Lock()
				defer mu.Unlock()
				if closed || (out.Err != nil && runCtx.Err() != nil) {
					// abandoned
					return nil
				}
				outcomes = append(outcomes, out)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-runCtx.Done():
	}

	mu.Lock()
	closed = true
	timedOut := runCtx.Err() != nil && len(outcomes) < len(batches)
	result := Schedule{
		Outcomes:  slices.Clone(outcomes),
		Attempted: started,
		Total:     len(batches),
		TimedOut:  timedOut,
		Elapsed:   time.Since(start),
	}
	mu.Unlock()

	slices.SortFunc(result.Outcomes, func(a, b BatchOutcome) int { return a.Number - b.Number })

	span.SetAttributes(
		attribute.Int("batches.attempted", result.Attempted),
		attribute.Int("batches.completed", len(result.Outcomes)),
		attribute.Bool("batches.timed_out", timedOut),
	)
	if timedOut {
		log.Error("batch processing timed out",
			zap.Duration("deadline", deadline),
			zap.Int("attempted", result.Attempted),
			zap.Int("completed", len(result.Outcomes)),
			zap.Int("total", result.Total))
	}
	return result
}

func runBatch(ctx context.Context, tracer trace.Tracer, log *zap.Logger, b Batch, fn BatchFunc) BatchOutcome {
	ctx, span := tracer.Start(ctx, "review.batch", trace.WithAttributes(
		attribute.Int("batch.number", b.Number),
		attribute.Int("batch.clauses", len(b.Clauses)),
	))
	defer span.End()

	start := time.Now()
	findings, err := fn(ctx, b)
	out := BatchOutcome{
		Number:      b.Number,
		ClauseCount: len(b.Clauses),
		Findings:    findings,
		Duration:    time.Since(start),
	}

	switch {
	case err == nil:
		log.Debug("batch processed",
			zap.Int("batch", b.Number),
			zap.Int("findings", len(findings)),
			zap.Duration("took", out.Duration))
	case eris.Is(err, ErrMalformedResponse):
		out.Malformed = true
		out.Findings = nil
		span.SetAttributes(attribute.Bool("batch.malformed", true))
		log.Warn("batch response unusable", zap.Int("batch", b.Number), zap.Error(err))
	default:
		out.Err = err
		out.Findings = nil
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() == nil {
			log.Error("batch failed", zap.Int("batch", b.Number), zap.Error(err))
		}
	}
	span.SetAttributes(attribute.Int("batch.findings", len(out.Findings)))
	return out
}
