// Package config defines the pipeline configuration model for fcclean. A
// pipeline file names the code book, the yearly extracts and their layouts,
// the optional transform chain, the imputation policy, re-entry detection and
// the sinks. Files are JSON or YAML; the extension decides.
//
// Example (trimmed):
//
//	job: afcars-2001
//	codebook:
//	  source: { kind: file, file: { path: data/codebook.csv } }
//	inputs:
//	  - name: "2001"
//	    source: { kind: gcs, gcs: { bucket: foster-care, object: 2001.tab } }
//	    layout: afcars
//	transform:
//	  - kind: dedup
//	    options: { keys: [stfcid, repdatyr], policy: most-complete }
//	reentry: { enabled: true, start_year: 2015, end_year: 2019 }
//	output: { csv: { path: out/cleaned.csv } }
package config

import (
	"encoding/json"

	"github.com/sophie2chance2/foster-care-analysis/internal/impute"
	"github.com/sophie2chance2/foster-care-analysis/internal/reentry"
)

// DefaultLayoutName names the embedded AFCARS layout.
const DefaultLayoutName = "afcars"

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels metrics and log lines of every run.
	Job string `json:"job" yaml:"job"`

	CodeBook CodeBook `json:"codebook" yaml:"codebook"`

	// Inputs are the raw extracts, normalized separately and concatenated in
	// order.
	Inputs []Input `json:"inputs" yaml:"inputs"`

	// InputsList optionally names a text file with one extract path per line;
	// each becomes a file input with the default parser and layout.
	InputsList string `json:"inputs_list" yaml:"inputs_list"`

	// Layouts maps a layout name to a YAML layout file. The name "afcars" is
	// built in and may be overridden.
	Layouts map[string]string `json:"layouts" yaml:"layouts"`

	// Transform lists optional steps run after normalization and before
	// imputation.
	Transform []Transform `json:"transform" yaml:"transform"`

	// Impute replaces the default imputation policy when set.
	Impute *impute.Policy `json:"impute" yaml:"impute"`

	Reentry     Reentry       `json:"reentry" yaml:"reentry"`
	Output      Output        `json:"output" yaml:"output"`
	Storage     Storage       `json:"storage" yaml:"storage"`
	Runtime     RuntimeConfig `json:"runtime" yaml:"runtime"`
	Metrics     Metrics       `json:"metrics" yaml:"metrics"`
	Diagnostics Diagnostics   `json:"diagnostics" yaml:"diagnostics"`
}

// CodeBook locates the three-column code book.
type CodeBook struct {
	Source Source `json:"source" yaml:"source"`
	Parser Parser `json:"parser" yaml:"parser"`
	// Aliases maps a data column name to the code book variable it uses.
	Aliases map[string]string `json:"aliases" yaml:"aliases"`
}

// Input is one raw extract.
type Input struct {
	// Name identifies the input in notices and the summary; defaults to the
	// source's base name.
	Name   string `json:"name" yaml:"name"`
	Source Source `json:"source" yaml:"source"`
	Parser Parser `json:"parser" yaml:"parser"`
	// Layout names an entry of Pipeline.Layouts; default "afcars".
	Layout string `json:"layout" yaml:"layout"`
}

// RuntimeConfig controls concurrency, batching and channel buffer sizes.
type RuntimeConfig struct {
	// InputWorkers bounds how many extracts are read and normalized at once.
	InputWorkers  int `json:"input_workers" yaml:"input_workers"`
	BatchSize     int `json:"batch_size" yaml:"batch_size"`
	ChannelBuffer int `json:"channel_buffer" yaml:"channel_buffer"`
}

// Source identifies where bytes come from.
type Source struct {
	// Kind selects the implementation: "file", "http" or "gcs".
	Kind string     `json:"kind" yaml:"kind"`
	File SourceFile `json:"file" yaml:"file"`
	HTTP SourceHTTP `json:"http" yaml:"http"`
	GCS  SourceGCS  `json:"gcs" yaml:"gcs"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path" yaml:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL            string            `json:"url" yaml:"url"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int               `json:"max_retries" yaml:"max_retries"`
}

// SourceGCS holds configuration for the "gcs" source kind. Credentials come
// from CredentialsFile or, when empty, from GOOGLE_APPLICATION_CREDENTIALS.
type SourceGCS struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	Object          string `json:"object" yaml:"object"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// Parser selects how raw bytes become a table.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the parser. For CSV: has_header (bool), comma
	// (string; "tab" or "\t" for tab-separated), trim_space (bool),
	// expected_fields (int), header_map (object), null_values (array).
	Options Options `json:"options" yaml:"options"`
}

// Transform defines a single transformation step.
type Transform struct {
	// Kind selects the transform: "trim", "coerce", "dedup" or "require".
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Reentry enables the re-entry detector. The detector configuration is
// inlined; YearColumn names the long-table year column used to build the
// wide indicator matrix (default: the layout's year column).
type Reentry struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	YearColumn     string `json:"year_column" yaml:"year_column"`
	reentry.Config `yaml:",inline"`
}

// Output configures file sinks.
type Output struct {
	CSV CSVOutput `json:"csv" yaml:"csv"`
}

// CSVOutput writes the cleaned table as CSV when Path is set.
type CSVOutput struct {
	Path string `json:"path" yaml:"path"`
}

// Storage selects the optional database sink. An empty Kind disables it.
type Storage struct {
	Kind string   `json:"kind" yaml:"kind"`
	DB   DBConfig `json:"db" yaml:"db"`
}

// DBConfig configures the database sink.
type DBConfig struct {
	// DSN is the driver connection string. FCCLEAN_STORAGE_DSN overrides it.
	DSN string `json:"dsn" yaml:"dsn"`

	// Table is the destination table, optionally schema-qualified.
	Table string `json:"table" yaml:"table"`

	// AutoCreateTable creates the table from the cleaned table's inferred
	// column types when it does not exist.
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table"`
}

// Metrics selects the metrics backend: "" or "none", "pushgateway",
// "datadog".
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Diagnostics configures where advisory notices are written in addition to
// the log.
type Diagnostics struct {
	NoticesPath string `json:"notices_path" yaml:"notices_path"`
}

// Options is a small helper to fetch typed values from free-form option
// maps. It performs only minimal type coercion and returns the provided
// default when a key is absent or of an unexpected type. Values decoded from
// JSON arrive as float64, values decoded from YAML as int; both are handled.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		case uint64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def. The words
// "tab" and "\t" both mean a tab character.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			if s == "tab" || s == `\t` {
				return '\t'
			}
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		switch m := v.(type) {
		case map[string]any:
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		case map[string]string:
			for k, s := range m {
				res[k] = s
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON decodes a missing or null options object to an empty map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
