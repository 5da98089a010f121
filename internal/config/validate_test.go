package config

import (
	"strings"
	"testing"

	"github.com/sophie2chance2/foster-care-analysis/internal/impute"
	"github.com/sophie2chance2/foster-care-analysis/internal/reentry"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

// validPipeline returns a minimal pipeline that produces no issues.
func validPipeline() Pipeline {
	return Pipeline{
		Job: "afcars-2001",
		CodeBook: CodeBook{
			Source: Source{Kind: "file", File: SourceFile{Path: "codebook.csv"}},
			Parser: Parser{Kind: "csv"},
		},
		Inputs: []Input{{
			Name:   "2001",
			Source: Source{Kind: "file", File: SourceFile{Path: "2001.tab"}},
			Parser: Parser{Kind: "csv", Options: Options{"comma": "tab"}},
			Layout: DefaultLayoutName,
		}},
		Output:  Output{CSV: CSVOutput{Path: "out/cleaned.csv"}},
		Runtime: RuntimeConfig{BatchSize: 1000},
	}
}

func TestValidatePipeline_ValidMinimal(t *testing.T) {
	t.Parallel()

	if issues := ValidatePipeline(validPipeline()); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestValidatePipeline_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *Pipeline)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing job", func(p *Pipeline) { p.Job = " " }, SeverityError, "job", "job must not be empty"},
		{"codebook kind", func(p *Pipeline) { p.CodeBook.Source.Kind = "" }, SeverityError, "codebook.source.kind", "must not be empty"},
		{"no inputs", func(p *Pipeline) { p.Inputs = nil }, SeverityError, "inputs", "at least one input"},
		{"unknown source", func(p *Pipeline) { p.Inputs[0].Source.Kind = "ftp" }, SeverityError, "inputs[0].source.kind", `unknown source kind "ftp"`},
		{"gcs bucket", func(p *Pipeline) {
			p.Inputs[0].Source = Source{Kind: "gcs", GCS: SourceGCS{Object: "2001.tab"}}
		}, SeverityError, "inputs[0].source.gcs.bucket", "requires a bucket"},
		{"http url", func(p *Pipeline) {
			p.Inputs[0].Source = Source{Kind: "http", HTTP: SourceHTTP{URL: "ftp://x"}}
		}, SeverityError, "inputs[0].source.http.url", "http(s) URL"},
		{"bad comma", func(p *Pipeline) { p.Inputs[0].Parser.Options = Options{"comma": ";;"} }, SeverityError, "inputs[0].parser.options.comma", "single character"},
		{"no header", func(p *Pipeline) { p.Inputs[0].Parser.Options = Options{"has_header": false} }, SeverityWarning, "inputs[0].parser.options.has_header", "col_1"},
		{"unknown layout", func(p *Pipeline) { p.Inputs[0].Layout = "afcars1999" }, SeverityError, "inputs[0].layout", `layout "afcars1999"`},
		{"duplicate input name", func(p *Pipeline) { p.Inputs = append(p.Inputs, p.Inputs[0]) }, SeverityWarning, "inputs[1].name", "repeats inputs[0]"},
		{"unknown transform", func(p *Pipeline) { p.Transform = []Transform{{Kind: "normalize"}} }, SeverityError, "transform[0].kind", "unknown transform kind"},
		{"dedup keys", func(p *Pipeline) { p.Transform = []Transform{{Kind: "dedup", Options: Options{}}} }, SeverityError, "transform[0].options.keys", "at least one key"},
		{"dedup policy", func(p *Pipeline) {
			p.Transform = []Transform{{Kind: "dedup", Options: Options{"keys": []any{"stfcid"}, "policy": "newest"}}}
		}, SeverityError, "transform[0].options.policy", `"newest"`},
		{"coerce type", func(p *Pipeline) {
			p.Transform = []Transform{{Kind: "coerce", Options: Options{"types": map[string]any{"dob": "datetime"}}}}
		}, SeverityError, "transform[0].options.types.dob", `"datetime"`},
		{"bad impute", func(p *Pipeline) {
			p.Impute = &impute.Policy{Rules: []impute.Rule{{Class: "weird", Columns: []string{"x"}}}}
		}, SeverityError, "impute", "unknown class"},
		{"reentry window", func(p *Pipeline) {
			p.Reentry = Reentry{Enabled: true, Config: reentry.Config{StartYear: 2019, EndYear: 2015}}
		}, SeverityError, "reentry.start_year", "after end_year"},
		{"reentry years", func(p *Pipeline) { p.Reentry = Reentry{Enabled: true} }, SeverityError, "reentry", "required"},
		{"no sinks", func(p *Pipeline) { p.Output.CSV.Path = "" }, SeverityWarning, "output", "no csv output"},
		{"storage kind", func(p *Pipeline) {
			p.Storage = Storage{Kind: "oracle", DB: DBConfig{DSN: "x", Table: "t"}}
		}, SeverityError, "storage.kind", `unknown storage kind "oracle"`},
		{"storage dsn", func(p *Pipeline) { p.Storage = Storage{Kind: "postgres", DB: DBConfig{Table: "t"}} }, SeverityError, "storage.db.dsn", EnvStorageDSN},
		{"storage table", func(p *Pipeline) { p.Storage = Storage{Kind: "sqlite", DB: DBConfig{DSN: "x.db"}} }, SeverityError, "storage.db.table", "must not be empty"},
		{"runtime", func(p *Pipeline) { p.Runtime.InputWorkers = -1 }, SeverityError, "runtime.input_workers", "negative"},
		{"metrics backend", func(p *Pipeline) { p.Metrics.Backend = "statsd" }, SeverityError, "metrics.backend", `"statsd"`},
		{"pushgateway url", func(p *Pipeline) { p.Metrics.Backend = "pushgateway" }, SeverityError, "metrics.pushgateway_url", EnvPushgatewayURL},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validPipeline()
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(t, issues, tt.sev, tt.path, tt.msg) {
				t.Fatalf("want %s at %s containing %q; got %+v", tt.sev, tt.path, tt.msg, issues)
			}
		})
	}
}

func TestValidatePipeline_InputsListSatisfiesInputs(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Inputs = nil
	p.InputsList = "configs/extracts.txt"
	if issues := ValidatePipeline(p); HasErrors(issues) {
		t.Fatalf("inputs_list alone must be accepted; got %+v", issues)
	}
}

func TestIssueError(t *testing.T) {
	t.Parallel()

	iss := Issue{Severity: SeverityError, Path: "job", Message: "empty"}
	if got, want := iss.Error(), "error at job: empty"; got != want {
		t.Fatalf("Error() = %q; want %q", got, want)
	}
	if !HasErrors([]Issue{{Severity: SeverityWarning}, iss}) || HasErrors([]Issue{{Severity: SeverityWarning}}) {
		t.Fatal("HasErrors")
	}
}
