// Package config provides configuration models and helpers for pipelines.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users
	// but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "inputs[1].source.gcs.bucket"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether issues contains at least one SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Known kinds. Unknown kinds are errors here: every kind must map to an
// implementation compiled into the binary.
var (
	sourceKinds    = []string{"file", "http", "gcs"}
	parserKinds    = []string{"csv"}
	transformKinds = []string{"trim", "coerce", "dedup", "require"}
	storageKinds   = []string{"postgres", "mysql", "mssql", "sqlite"}
	metricsKinds   = []string{"", "none", "pushgateway", "datadog"}
	dedupPolicies  = []string{"keep-first", "keep-last", "most-complete"}
	coerceTypes    = []string{"int", "float", "bool", "date", "string"}
)

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate the pipeline; callers decide whether warnings are fatal.
//
// Example:
//
//	p, err := config.Load("configs/afcars-2001.yaml")
//	if err != nil { ... }
//	for _, iss := range config.ValidatePipeline(p) {
//	    fmt.Println(iss)
//	}
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}

	issues = append(issues, validateSource("codebook.source", p.CodeBook.Source)...)
	issues = append(issues, validateParser("codebook.parser", p.CodeBook.Parser)...)

	if len(p.Inputs) == 0 && strings.TrimSpace(p.InputsList) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "inputs",
			Message:  "at least one input (or inputs_list) is required",
		})
	}
	names := map[string]int{}
	for i, in := range p.Inputs {
		base := fmt.Sprintf("inputs[%d]", i)
		issues = append(issues, validateSource(base+".source", in.Source)...)
		issues = append(issues, validateParser(base+".parser", in.Parser)...)
		if in.Layout != "" && in.Layout != DefaultLayoutName {
			if _, ok := p.Layouts[in.Layout]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     base + ".layout",
					Message:  fmt.Sprintf("layout %q is neither built in nor listed under layouts", in.Layout),
				})
			}
		}
		if in.Name != "" {
			if prev, dup := names[in.Name]; dup {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     base + ".name",
					Message:  fmt.Sprintf("input name %q repeats inputs[%d]; notices will be ambiguous", in.Name, prev),
				})
			} else {
				names[in.Name] = i
			}
		}
	}
	for name, path := range p.Layouts {
		if strings.TrimSpace(path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "layouts." + name,
				Message:  "layout path must not be empty",
			})
		}
	}

	issues = append(issues, validateTransforms(p.Transform)...)
	if p.Impute != nil {
		if err := p.Impute.Validate(); err != nil {
			issues = append(issues, Issue{Severity: SeverityError, Path: "impute", Message: err.Error()})
		}
	}
	issues = append(issues, validateReentry(p.Reentry)...)
	issues = append(issues, validateSinks(p.Output, p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)

	return issues
}

// validateSource validates a Source at path.
func validateSource(path string, s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  "source kind must not be empty",
		})
	}
	if !oneOf(s.Kind, sourceKinds) {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown source kind %q (want one of %s)", s.Kind, strings.Join(sourceKinds, ", ")),
		})
	}

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	case "http":
		u := strings.TrimSpace(s.HTTP.URL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".http.url",
				Message:  "http source requires an http(s) URL",
			})
		}
		if s.HTTP.TimeoutSeconds < 0 || s.HTTP.MaxRetries < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".http",
				Message:  "timeout_seconds and max_retries must not be negative",
			})
		}
	case "gcs":
		if strings.TrimSpace(s.GCS.Bucket) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".gcs.bucket",
				Message:  "gcs source requires a bucket",
			})
		}
		if strings.TrimSpace(s.GCS.Object) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".gcs.object",
				Message:  "gcs source requires an object name",
			})
		}
	}

	return issues
}

// validateParser validates parser configuration at path.
func validateParser(path string, p Parser) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  "parser kind must not be empty",
		})
	}
	if !oneOf(p.Kind, parserKinds) {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown parser kind %q", p.Kind),
		})
	}

	if p.Kind == "csv" {
		if c := p.Options.String("comma", ""); c != "" && c != "tab" && c != `\t` && len([]rune(c)) != 1 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".options.comma",
				Message:  fmt.Sprintf("comma must be a single character or \"tab\", got %q", c),
			})
		}
		if !p.Options.Bool("has_header", true) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".options.has_header",
				Message:  "has_header is false; columns will be named col_1..col_N and resolve as unrecognized",
			})
		}
	}

	return issues
}

// validateTransforms validates the optional transform chain.
func validateTransforms(ts []Transform) []Issue {
	var issues []Issue

	for i, t := range ts {
		path := fmt.Sprintf("transform[%d]", i)
		if strings.TrimSpace(t.Kind) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".kind",
				Message:  "transform kind must not be empty",
			})
			continue
		}
		if !oneOf(t.Kind, transformKinds) {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".kind",
				Message:  fmt.Sprintf("unknown transform kind %q (want one of %s)", t.Kind, strings.Join(transformKinds, ", ")),
			})
			continue
		}

		switch t.Kind {
		case "coerce":
			types := t.Options.StringMap("types")
			if len(types) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".options.types",
					Message:  "coerce transform has no types; it will not change anything",
				})
			}
			for col, typ := range types {
				if !oneOf(strings.ToLower(typ), coerceTypes) {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Path:     path + ".options.types." + col,
						Message:  fmt.Sprintf("unknown coerce type %q", typ),
					})
				}
			}
		case "dedup":
			if len(t.Options.StringSlice("keys")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".options.keys",
					Message:  "dedup transform requires at least one key column",
				})
			}
			if pol := t.Options.String("policy", "keep-last"); !oneOf(pol, dedupPolicies) {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".options.policy",
					Message:  fmt.Sprintf("unknown dedup policy %q", pol),
				})
			}
		case "require":
			if len(t.Options.StringSlice("fields")) == 0 {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".options.fields",
					Message:  "require transform has no fields; it will keep every row",
				})
			}
		}
	}

	return issues
}

// validateReentry checks the detector window when detection is enabled.
func validateReentry(r Reentry) []Issue {
	if !r.Enabled {
		return nil
	}
	var issues []Issue
	if r.StartYear <= 0 || r.EndYear <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "reentry",
			Message:  "start_year and end_year are required when re-entry detection is enabled",
		})
	} else if r.StartYear > r.EndYear {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "reentry.start_year",
			Message:  fmt.Sprintf("start_year %d is after end_year %d", r.StartYear, r.EndYear),
		})
	}
	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "reentry.workers",
			Message:  "workers must not be negative",
		})
	}
	return issues
}

// validateSinks checks the CSV output and the optional database sink.
func validateSinks(o Output, s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(o.CSV.Path) == "" && strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "output",
			Message:  "no csv output and no storage configured; results are only summarized",
		})
	}
	if strings.TrimSpace(s.Kind) == "" {
		return issues
	}
	if !oneOf(s.Kind, storageKinds) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q (want one of %s)", s.Kind, strings.Join(storageKinds, ", ")),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty (or set " + EnvStorageDSN + ")",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	return issues
}

// validateRuntime validates RuntimeConfig for obvious misconfigurations.
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	if r.InputWorkers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.input_workers",
			Message:  "input_workers must not be negative",
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}

	return issues
}

// validateMetrics checks the backend name and its endpoint.
func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	if !oneOf(m.Backend, metricsKinds) {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q", m.Backend),
		})
	}
	if m.Backend == "pushgateway" && strings.TrimSpace(m.PushgatewayURL) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics.pushgateway_url",
			Message:  "pushgateway backend requires pushgateway_url (or " + EnvPushgatewayURL + ")",
		})
	}
	return issues
}
