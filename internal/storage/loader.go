package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// CopyFn abstracts a backend's bulk insert. Rows are aligned to columns; the
// return value is the number of rows the backend reports as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn for each non-empty batch. It returns the running total and the
// first error. A progress line is logged at debug level per flush.
func LoadBatches(
	ctx context.Context,
	logger *zap.Logger,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		total     int64
		batches   int64
		batch     = make([][]any, 0, batchSize)
		start     = time.Now()
		lastFlush = start
		lastTotal int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		// Rows are handed to copyFn by value; the backing array is reused.
		batch = batch[:0]
		if err != nil {
			logger.Error("loader: copy failed", zap.Int64("after", n), zap.Int64("total", total), zap.Error(err))
			return err
		}

		batches++
		now := time.Now()
		since := now.Sub(lastFlush)
		rps := float64(0)
		if since > 0 {
			rps = float64(total-lastTotal) / since.Seconds()
		}
		logger.Debug("loader: batch",
			zap.Int64("batch", batches),
			zap.Float64("rps", rps),
			zap.Int64("inserted", n),
			zap.Int64("total_inserted", total),
			zap.Duration("elapsed", now.Sub(start).Truncate(time.Millisecond)),
		)
		lastFlush = now
		lastTotal = total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				logger.Info("loader: input closed", zap.Int64("batches", batches), zap.Int64("total_inserted", total))
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

// WriteOptions tunes WriteTable.
type WriteOptions struct {
	// BatchSize is the number of rows per CopyFrom call; default 1000.
	BatchSize int
	// Buffer is the capacity of the row channel; default 2*BatchSize.
	Buffer int
	Logger *zap.Logger
}

// WriteTable streams the rows of t into repo through LoadBatches. Values are
// converted per cols; columns of cols missing from a row are written as NULL.
func WriteTable(ctx context.Context, repo Repository, cols []Column, t records.Table, opts WriteOptions) (int64, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 2 * opts.BatchSize
	}
	names := ColumnNames(cols)
	rows := make(chan []any, opts.Buffer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rows)
		for _, r := range t.Rows {
			vals := make([]any, len(cols))
			for i, c := range cols {
				vals[i] = c.Type.Value(r[c.Name])
			}
			select {
			case rows <- vals:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var total int64
	g.Go(func() error {
		n, err := LoadBatches(gctx, opts.Logger, names, rows, opts.BatchSize, repo.CopyFrom)
		total = n
		return err
	})
	err := g.Wait()
	return total, err
}
