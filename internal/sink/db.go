package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sophie2chance2/foster-care-analysis/internal/storage"
	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// DB writes the table through a storage backend. The repository is opened
// per Write and closed afterwards.
type DB struct {
	Config storage.Config
	// AutoCreate creates the table from the inferred column types first.
	AutoCreate bool
	Options    storage.WriteOptions
	Logger     *zap.Logger
}

// Name returns "<kind>:<table>".
func (d DB) Name() string { return d.Config.Kind + ":" + d.Config.Table }

// Write implements Sink.
func (d DB) Write(ctx context.Context, t records.Table) (int64, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cols := storage.InferColumns(t)
	cfg := d.Config
	cfg.Columns = storage.ColumnNames(cols)

	repo, err := storage.New(ctx, cfg)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", d.Name(), err)
	}
	defer repo.Close()

	if d.AutoCreate {
		if err := storage.EnsureTable(ctx, cfg.Kind, repo, cfg.Table, cols); err != nil {
			return 0, err
		}
		logger.Info("sink: table ensured", zap.String("sink", d.Name()), zap.Int("columns", len(cols)))
	}
	opts := d.Options
	if opts.Logger == nil {
		opts.Logger = logger
	}
	n, err := storage.WriteTable(ctx, repo, cols, t, opts)
	if err != nil {
		return n, fmt.Errorf("write %s: %w", d.Name(), err)
	}
	return n, nil
}
