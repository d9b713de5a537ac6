package anonymizer

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

// DocumentResult is the outcome for one document in a batch. Exactly one of
// (Text, Audit) or Err is meaningful: a failed document carries the typed
// error and a zero-valued result.
type DocumentResult struct {
	Index int
	Text  string
	Audit *AuditLog
	Err   error
}

// BatchConfig controls batch execution.
type BatchConfig struct {
	// Concurrency bounds the number of documents processed in parallel.
	// Values below 1 mean sequential processing.
	Concurrency int

	// DocumentTimeout is the per-document deadline. Zero disables it. A
	// timed-out document is abandoned and reported as a per-item failure;
	// it is never retried here — retry policy belongs to the caller.
	DocumentTimeout time.Duration
}

// BatchRunner applies the engine independently to each document of a batch.
// Documents share no mutable state beyond the read-only entity source
// handle, so they are processed concurrently; one document's failure never
// affects another's.
type BatchRunner struct {
	engine *Engine
	cfg    BatchConfig
	logger logging.Logger
}

// NewBatchRunner constructs a BatchRunner around an engine.
func NewBatchRunner(engine *Engine, cfg BatchConfig, logger logging.Logger) *BatchRunner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &BatchRunner{engine: engine, cfg: cfg, logger: logger}
}

// Run anonymizes every text and returns results in input order, same length
// as the input. Option validation happens once up front; a validation error
// fails the whole call since no document could succeed.
func (r *BatchRunner) Run(ctx context.Context, texts []string, opts Options) ([]DocumentResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	results := make([]DocumentResult, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			results[i] = r.runOne(gctx, i, text, opts)
			// Item failures are isolated in the result slice; never abort
			// the group.
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

func (r *BatchRunner) runOne(ctx context.Context, index int, text string, opts Options) (res DocumentResult) {
	res.Index = index

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while anonymizing batch document",
				logging.Int("index", index),
				logging.Any("panic", rec))
			res = DocumentResult{
				Index: index,
				Err:   errors.Newf(errors.ErrCodeDocumentPanic, "document %d: recovered panic: %v", index, rec),
			}
		}
	}()

	docCtx := ctx
	if r.cfg.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		docCtx, cancel = context.WithTimeout(ctx, r.cfg.DocumentTimeout)
		defer cancel()
	}

	out, audit, err := r.engine.Anonymize(docCtx, text, opts)
	if err != nil {
		res.Err = err
		return res
	}
	// The engine fails open on source errors, so a deadline that expired
	// mid-flight surfaces here rather than as an Anonymize error.
	if docCtx.Err() != nil {
		res.Err = errors.Wrap(docCtx.Err(), errors.ErrCodeDocumentTimeout,
			"document abandoned before completion")
		return res
	}

	res.Text = out
	res.Audit = audit
	return res
}
