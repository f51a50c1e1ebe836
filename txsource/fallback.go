package txsource

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/socheatsok78/ordextract/metrics"
)

// Fallback queries its sources in order and returns the first success.
type Fallback struct {
	sources []Source
	logger  log.Logger
}

func NewFallback(logger log.Logger, sources ...Source) *Fallback {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Fallback{sources: sources, logger: logger}
}

func (f *Fallback) Name() string {
	if len(f.sources) == 1 {
		return f.sources[0].Name()
	}
	return "fallback"
}

func (f *Fallback) WitnessHex(ctx context.Context, txid string) (string, error) {
	return first(ctx, f, "witness", txid, func(s Source) (string, error) {
		return s.WitnessHex(ctx, txid)
	})
}

func (f *Fallback) Transaction(ctx context.Context, txid string) (*Transaction, error) {
	return first(ctx, f, "transaction", txid, func(s Source) (*Transaction, error) {
		return s.Transaction(ctx, txid)
	})
}

func (f *Fallback) Block(ctx context.Context, txid string) (*Block, error) {
	return first(ctx, f, "block", txid, func(s Source) (*Block, error) {
		return s.Block(ctx, txid)
	})
}

// first runs fetch against each source until one succeeds. Answers that
// another source would repeat, a missing witness or an unconfirmed
// transaction, end the walk early.
func first[T any](ctx context.Context, f *Fallback, op, txid string, fetch func(Source) (T, error)) (T, error) {
	var zero T
	if _, err := ParseTxID(txid); err != nil {
		return zero, err
	}

	if len(f.sources) == 0 {
		return zero, fmt.Errorf("no transaction source configured")
	}

	var errs []error
	for _, s := range f.sources {
		v, err := fetch(s)
		if err == nil {
			metrics.SourceFetchCounter.WithLabelValues(s.Name(), op, "success").Inc()
			return v, nil
		}
		metrics.SourceFetchCounter.WithLabelValues(s.Name(), op, "error").Inc()
		level.Warn(f.logger).Log("msg", "transaction source failed", "source", s.Name(), "op", op, "txid", txid, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))

		if ctx.Err() != nil || errors.Is(err, ErrNoWitness) || errors.Is(err, ErrUnconfirmed) {
			break
		}
	}
	return zero, errors.Join(errs...)
}

func (f *Fallback) Close() error {
	var errs []error
	for _, s := range f.sources {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
