package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sophie2chance2/foster-care-analysis/internal/codebook"
	"github.com/sophie2chance2/foster-care-analysis/internal/config"
	"github.com/sophie2chance2/foster-care-analysis/internal/datasource/httpds"
	"github.com/sophie2chance2/foster-care-analysis/internal/pipeline"
	"github.com/sophie2chance2/foster-care-analysis/internal/resolve"
	"github.com/sophie2chance2/foster-care-analysis/internal/schema"
)

var (
	inspectCodeBook string
	inspectLayout   string
)

// inspectCmd resolves an extract's header without reading its rows
var inspectCmd = &cobra.Command{
	Use:   "inspect [extract]",
	Short: "Show how each column of an extract would be resolved",
	Long: `Reads only the header of an extract (local path, http(s) URL or gs:// URI)
and prints the role every column takes under the layout and code book:
identifier, coded (with its label column), excluded or unrecognized.

Example:
  fcclean inspect --codebook data/codebook.csv gs://foster-care/FC2001v5.tab`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectCodeBook, "codebook", "", "Code book location (required)")
	inspectCmd.Flags().StringVar(&inspectLayout, "layout", "", "Layout YAML file (default: built-in AFCARS layout)")
	_ = inspectCmd.MarkFlagRequired("codebook")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	book, err := loadBook(ctx, inspectCodeBook)
	if err != nil {
		return err
	}
	layout := schema.DefaultLayout()
	if inspectLayout != "" {
		if layout, err = schema.LoadLayout(inspectLayout); err != nil {
			return err
		}
	}
	compiled, err := layout.Compile()
	if err != nil {
		return err
	}
	res, err := resolve.New(compiled, book)
	if err != nil {
		return err
	}

	columns, name, err := readHeader(ctx, args[0])
	if err != nil {
		return err
	}
	for i, c := range columns {
		columns[i] = compiled.Canonical(c)
	}
	return printPlan(cmd.OutOrStdout(), res.Plan(name, columns))
}

func loadBook(ctx context.Context, loc string) (*codebook.Book, error) {
	s, err := pipeline.SourceFor(loc)
	if err != nil {
		return nil, err
	}
	src, err := pipeline.BuildSource(s, logger)
	if err != nil {
		return nil, err
	}
	prs, err := pipeline.BuildParser(config.Parser{Kind: "csv"}, s.BaseName(), logger)
	if err != nil {
		return nil, err
	}
	return codebook.Load(ctx, src, prs)
}

// readHeader returns the raw column names of the extract at loc. Remote
// extracts are read with a ranged request for the header row only.
func readHeader(ctx context.Context, loc string) ([]string, string, error) {
	s, err := pipeline.SourceFor(loc)
	if err != nil {
		return nil, "", err
	}
	src, err := pipeline.BuildSource(s, logger)
	if err != nil {
		return nil, "", err
	}
	name := s.BaseName()
	if hs, ok := src.(*httpds.Source); ok {
		hl, err := hs.Header(ctx)
		if err != nil {
			return nil, "", err
		}
		return hl.Fields, name, nil
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()
	line, err := bufio.NewReader(rc).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("read header of %s: %w", loc, err)
	}
	if strings.TrimSpace(line) == "" {
		return nil, "", fmt.Errorf("%s: empty header", loc)
	}
	prs, err := pipeline.BuildParser(config.Parser{Kind: "csv"}, name, logger)
	if err != nil {
		return nil, "", err
	}
	t, _, err := prs.Parse(strings.NewReader(line))
	if err != nil {
		return nil, "", err
	}
	return t.Columns, name, nil
}

func printPlan(w io.Writer, plan resolve.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tROLE\tOUTPUT")
	for _, r := range plan.Resolutions {
		out := r.Output
		if out == "" {
			out = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Column, r.Role, out)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, n := range plan.Notices {
		fmt.Fprintf(w, "notice: %s %s: %s\n", n.Kind, n.Column, n.Message)
	}
	return nil
}
