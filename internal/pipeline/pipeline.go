// Package pipeline runs one cleaning batch end to end.
//
// It wires the configured sources, parsers and layouts to the normalizer,
// the optional transform chain, the imputation engine, the re-entry detector
// and the sinks:
//
//	code book ─┐
//	input 1 ───┼─ parse ─ normalize ─┐
//	input N ───┘                     ├─ concat ─ transform ─ impute ─ reentry ─ sinks
//	                                 ┘
//
// Inputs are read and normalized concurrently (bounded by
// runtime.input_workers) and concatenated in configuration order. Every stage
// is timed and reported through internal/metrics; advisory notices go to a
// diag.Collector and, when configured, a notices CSV file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sophie2chance2/foster-care-analysis/internal/codebook"
	"github.com/sophie2chance2/foster-care-analysis/internal/config"
	"github.com/sophie2chance2/foster-care-analysis/internal/diag"
	"github.com/sophie2chance2/foster-care-analysis/internal/impute"
	"github.com/sophie2chance2/foster-care-analysis/internal/metrics"
	"github.com/sophie2chance2/foster-care-analysis/internal/normalize"
	"github.com/sophie2chance2/foster-care-analysis/internal/reentry"
	"github.com/sophie2chance2/foster-care-analysis/internal/sink"
	"github.com/sophie2chance2/foster-care-analysis/internal/storage"
	"github.com/sophie2chance2/foster-care-analysis/internal/transformer/builtin"
	"github.com/sophie2chance2/foster-care-analysis/pkg/records"
)

// ErrInvalidPipeline wraps configuration errors found before any input is
// opened.
var ErrInvalidPipeline = errors.New("pipeline: invalid configuration")

// Result is everything a run produced.
type Result struct {
	RunID   string
	Table   records.Table
	Summary diag.Summary
	Notices []diag.Notice
	// Written maps a sink name to the rows it stored.
	Written map[string]int64
}

// Function variables used as test seams.
var (
	newSource = BuildSource
	newRunID  = uuid.NewString
)

// Run executes p. Configuration errors are returned before any source is
// opened; warnings are logged. logger may be nil.
func Run(ctx context.Context, p config.Pipeline, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	issues := config.ValidatePipeline(p)
	var errs []error
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			errs = append(errs, iss)
			continue
		}
		logger.Warn("config", zap.String("path", iss.Path), zap.String("message", iss.Message))
	}
	if len(errs) > 0 {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidPipeline, errors.Join(errs...))
	}

	r := &run{
		p:   p,
		id:  newRunID(),
		res: Result{Written: map[string]int64{}},
	}
	r.res.RunID = r.id
	r.log = logger.With(zap.String("run_id", r.id), zap.String("job", p.Job))

	var next diag.Sink
	if path := p.Diagnostics.NoticesPath; path != "" {
		csvLog, closeLog, err := diag.NewCSVLog(path)
		if err != nil {
			return Result{}, fmt.Errorf("notices log: %w", err)
		}
		defer func() {
			if err := closeLog(); err != nil {
				r.log.Warn("notices log: close", zap.Error(err))
			}
		}()
		next = csvLog
	}
	r.notices = diag.NewCollector(r.log, next)

	start := time.Now()
	r.log.Info("run: start", zap.Int("inputs", len(p.Inputs)), zap.String("inputs_list", p.InputsList))
	if err := r.execute(ctx); err != nil {
		r.log.Error("run: failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return Result{}, err
	}
	r.res.Notices = r.notices.Notices()
	r.res.Summary.Log(r.log)
	r.recordMetrics()
	r.log.Info("run: done", zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
	return r.res, nil
}

// run carries the state of one Run call.
type run struct {
	p       config.Pipeline
	id      string
	log     *zap.Logger
	notices *diag.Collector
	res     Result

	layouts layoutSet
}

// step times fn and reports it as a pipeline step.
func (r *run) step(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.RecordStep(r.p.Job, name, err, d)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	r.log.Debug("step: done", zap.String("step", name), zap.Duration("elapsed", d))
	return nil
}

func (r *run) execute(ctx context.Context) error {
	var (
		book   *codebook.Book
		inputs []config.Input
		t      records.Table
	)
	if err := r.step("codebook", func() (err error) {
		book, err = r.loadCodeBook(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := r.step("layouts", func() (err error) {
		if inputs, err = ExpandInputs(r.p); err != nil {
			return err
		}
		if len(inputs) == 0 {
			return errors.New("no inputs to read")
		}
		r.layouts, err = loadLayouts(r.p, inputs)
		return err
	}); err != nil {
		return err
	}
	if err := r.step("normalize", func() (err error) {
		t, err = r.readInputs(ctx, book, inputs)
		return err
	}); err != nil {
		return err
	}
	if err := r.step("transform", func() (err error) {
		t, err = r.transform(ctx, t)
		return err
	}); err != nil {
		return err
	}

	r.res.Summary.NullsBefore = records.NullCounts(t)
	if err := r.step("impute", func() (err error) {
		t, err = r.impute(ctx, t)
		return err
	}); err != nil {
		return err
	}

	if r.p.Reentry.Enabled {
		if err := r.step("reentry", func() (err error) {
			t, err = r.reentry(ctx, t, inputs)
			return err
		}); err != nil {
			return err
		}
	}

	if err := r.step("write", func() error {
		return r.write(ctx, t)
	}); err != nil {
		return err
	}

	r.res.Table = t
	s := &r.res.Summary
	s.RunID = r.id
	s.TotalRows = t.Len()
	s.Columns = len(t.Columns)
	s.NullsAfter = records.NullCounts(t)
	s.Unrecognized = r.notices.Count(diag.KindUnrecognizedColumn)
	for _, n := range r.notices.Notices() {
		if n.Kind == diag.KindUnmappedCode {
			s.UnmappedCells += n.Count
		}
	}
	return nil
}

func (r *run) loadCodeBook(ctx context.Context) (*codebook.Book, error) {
	cb := r.p.CodeBook
	src, err := newSource(cb.Source, r.log)
	if err != nil {
		return nil, err
	}
	prs, err := BuildParser(cb.Parser, cb.Source.BaseName(), r.log)
	if err != nil {
		return nil, err
	}
	book, err := codebook.Load(ctx, src, prs, codebook.WithAliases(cb.Aliases))
	if err != nil {
		return nil, err
	}
	r.log.Info("codebook: loaded",
		zap.String("source", src.Name()),
		zap.Int("variables", len(book.Variables())),
		zap.Int("codes", book.Len()),
	)
	return book, nil
}

// readInputs parses and normalizes every input, at most InputWorkers at a
// time, and concatenates the results in input order.
func (r *run) readInputs(ctx context.Context, book *codebook.Book, inputs []config.Input) (records.Table, error) {
	normalizers := make(map[string]*normalize.Normalizer, len(r.layouts.compiled))
	for name, c := range r.layouts.compiled {
		n, err := normalize.New(c, book, normalize.WithLogger(r.log), normalize.WithSink(r.notices))
		if err != nil {
			return records.Table{}, fmt.Errorf("layout %s: %w", name, err)
		}
		normalizers[name] = n
	}

	tables := make([]records.Table, len(inputs))
	skipped := make([]int, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.p.Runtime.InputWorkers, 1))
	for i, in := range inputs {
		g.Go(func() error {
			t, n, err := r.readInput(gctx, in, normalizers[layoutName(in)])
			if err != nil {
				return fmt.Errorf("input %s: %w", in.Name, err)
			}
			tables[i], skipped[i] = t, n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return records.Table{}, err
	}

	r.res.Summary.RowsPerInput = make(map[string]int, len(inputs))
	var read, bad int
	for i, in := range inputs {
		r.res.Summary.RowsPerInput[in.Name] += tables[i].Len()
		read += tables[i].Len()
		bad += skipped[i]
	}
	metrics.RecordRow(r.p.Job, "read", int64(read))
	metrics.RecordRow(r.p.Job, "skipped", int64(bad))
	out := records.Concat(tables...)
	r.log.Info("inputs: concatenated",
		zap.Int("inputs", len(inputs)),
		zap.Int("rows", out.Len()),
		zap.Int("columns", len(out.Columns)),
		zap.Int("skipped", bad),
	)
	return out, nil
}

func (r *run) readInput(ctx context.Context, in config.Input, n *normalize.Normalizer) (records.Table, int, error) {
	src, err := newSource(in.Source, r.log)
	if err != nil {
		return records.Table{}, 0, err
	}
	prs, err := BuildParser(in.Parser, in.Source.BaseName(), r.log.With(zap.String("source", in.Name)))
	if err != nil {
		return records.Table{}, 0, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return records.Table{}, 0, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	raw, skipped, err := prs.Parse(rc)
	if err != nil {
		return records.Table{}, skipped, fmt.Errorf("parse: %w", err)
	}
	out, _, err := n.Normalize(ctx, in.Name, raw)
	if err != nil {
		return records.Table{}, skipped, err
	}
	return out, skipped, nil
}

func layoutName(in config.Input) string {
	if in.Layout == "" {
		return config.DefaultLayoutName
	}
	return in.Layout
}

func (r *run) transform(ctx context.Context, t records.Table) (records.Table, error) {
	if len(r.p.Transform) == 0 {
		return t, nil
	}
	chain, err := builtin.BuildChain(r.p.Transform)
	if err != nil {
		return records.Table{}, err
	}
	out, err := chain.Apply(ctx, t)
	if err != nil {
		return records.Table{}, err
	}
	if removed := t.Len() - out.Len(); removed > 0 {
		metrics.RecordRow(r.p.Job, "removed", int64(removed))
		r.log.Info("transform: rows removed", zap.Int("removed", removed), zap.Int("rows", out.Len()))
	}
	return out, nil
}

func (r *run) impute(ctx context.Context, t records.Table) (records.Table, error) {
	policy := impute.DefaultPolicy()
	if r.p.Impute != nil {
		policy = *r.p.Impute
	}
	eng, err := impute.New(policy, r.log)
	if err != nil {
		return records.Table{}, err
	}
	out, res, err := eng.Impute(ctx, t)
	if err != nil {
		return records.Table{}, err
	}
	for _, col := range res.Absent {
		r.notices.Notice(diag.Notice{
			Kind:    diag.KindAbsentColumn,
			Column:  col,
			Message: "imputation column not in the table",
		})
	}
	r.res.Summary.Filled = make(map[string]int, len(res.Filled))
	for c, n := range res.Filled {
		r.res.Summary.Filled[string(c)] = n
	}
	return out, nil
}

// reentry builds the wide indicator table from the long records, scans it
// and merges the flag back onto every row of t.
func (r *run) reentry(ctx context.Context, t records.Table, inputs []config.Input) (records.Table, error) {
	cfg := r.p.Reentry
	// The first input's layout names the subject and year columns unless the
	// pipeline overrides them.
	l := r.layouts.raw[layoutName(inputs[0])]
	if cfg.SubjectColumn == "" {
		cfg.SubjectColumn = l.SubjectColumn
	}
	yearCol := cfg.YearColumn
	if yearCol == "" {
		yearCol = l.YearColumn
	}
	det, err := reentry.New(cfg.Config, r.log)
	if err != nil {
		return records.Table{}, err
	}
	wide, rep, err := det.Widen(t, cfg.SubjectColumn, yearCol)
	if err != nil {
		return records.Table{}, err
	}
	if n := rep.MissingYear + rep.InvalidYear; n > 0 {
		r.notices.Notice(diag.Notice{
			Kind:    diag.KindInvalidYear,
			Column:  yearCol,
			Count:   n,
			Message: "year missing or not a whole number; row left out of re-entry detection",
		})
	}
	if rep.OutOfWindow > 0 {
		r.notices.Notice(diag.Notice{
			Kind:    diag.KindOutOfWindowYear,
			Column:  yearCol,
			Count:   rep.OutOfWindow,
			Message: fmt.Sprintf("year outside %d-%d; row left out of re-entry detection", cfg.StartYear, cfg.EndYear),
		})
	}
	flagged, err := det.Apply(ctx, wide)
	if err != nil {
		return records.Table{}, err
	}
	out, err := reentry.Merge(t, flagged, cfg.SubjectColumn, det.FlagColumn())
	if err != nil {
		return records.Table{}, err
	}
	r.res.Summary.Reentries = reentry.Count(flagged, det.FlagColumn())
	return out, nil
}

// sinks returns the configured destinations in write order.
func (r *run) sinks() []sink.Sink {
	var out []sink.Sink
	if path := r.p.Output.CSV.Path; path != "" {
		out = append(out, sink.CSVFile{Path: path})
	}
	if st := r.p.Storage; st.Kind != "" {
		out = append(out, sink.DB{
			Config: storage.Config{
				Kind:  st.Kind,
				DSN:   st.DB.DSN,
				Table: st.DB.Table,
			},
			AutoCreate: st.DB.AutoCreateTable,
			Options: storage.WriteOptions{
				BatchSize: r.p.Runtime.BatchSize,
				Buffer:    r.p.Runtime.ChannelBuffer,
				Logger:    r.log,
			},
			Logger: r.log,
		})
	}
	return out
}

func (r *run) write(ctx context.Context, t records.Table) error {
	for _, s := range r.sinks() {
		n, err := s.Write(ctx, t)
		if err != nil {
			return err
		}
		r.res.Written[s.Name()] = n
		r.log.Info("sink: written", zap.String("sink", s.Name()), zap.Int64("rows", n))
		if db, ok := s.(sink.DB); ok {
			metrics.RecordRow(r.p.Job, "db", n)
			if bs := db.Options.BatchSize; bs > 0 {
				metrics.RecordBatches(r.p.Job, (n+int64(bs)-1)/int64(bs))
			}
			continue
		}
		metrics.RecordRow(r.p.Job, "csv", n)
	}
	return nil
}

func (r *run) recordMetrics() {
	job := r.p.Job
	metrics.RecordFilled(job, r.res.Summary.Filled)
	for _, k := range []diag.Kind{diag.KindUnrecognizedColumn, diag.KindUnmappedCode, diag.KindAbsentColumn, diag.KindInvalidYear, diag.KindOutOfWindowYear} {
		metrics.RecordNotices(job, string(k), r.notices.Count(k))
	}
	metrics.RecordReentries(job, r.res.Summary.Reentries)
}
