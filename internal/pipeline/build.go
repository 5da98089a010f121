package pipeline

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sophie2chance2/foster-care-analysis/internal/config"
	"github.com/sophie2chance2/foster-care-analysis/internal/datasource"
	"github.com/sophie2chance2/foster-care-analysis/internal/datasource/file"
	"github.com/sophie2chance2/foster-care-analysis/internal/datasource/gcs"
	"github.com/sophie2chance2/foster-care-analysis/internal/datasource/httpds"
	"github.com/sophie2chance2/foster-care-analysis/internal/parser"
	"github.com/sophie2chance2/foster-care-analysis/internal/parser/csv"
	"github.com/sophie2chance2/foster-care-analysis/internal/schema"
)

// BuildSource returns the datasource configured by s.
func BuildSource(s config.Source, logger *zap.Logger) (datasource.Source, error) {
	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			return nil, fmt.Errorf("file source: path is empty")
		}
		return file.NewLocal(s.File.Path), nil

	case "http":
		timeout := 60 * time.Second
		if s.HTTP.TimeoutSeconds > 0 {
			timeout = time.Duration(s.HTTP.TimeoutSeconds) * time.Second
		}
		client := httpds.NewClient(httpds.Config{
			Timeout:    timeout,
			MaxRetries: s.HTTP.MaxRetries,
			Logger:     logger,
		})
		h := http.Header{}
		for k, v := range s.HTTP.Headers {
			h.Set(k, v)
		}
		return httpds.NewSource(client, s.HTTP.URL, h), nil

	case "gcs":
		src, err := gcs.New(gcs.Config{
			Bucket:          s.GCS.Bucket,
			Object:          s.GCS.Object,
			CredentialsFile: s.GCS.CredentialsFile,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("unsupported source kind %q", s.Kind)
}

// SourceFor maps one inputs_list entry onto a source: gs:// URIs read from
// Cloud Storage, http(s) URLs over HTTP and everything else from disk.
func SourceFor(loc string) (config.Source, error) {
	switch {
	case strings.HasPrefix(loc, "gs://"):
		bucket, object, err := gcs.ParseURI(loc)
		if err != nil {
			return config.Source{}, err
		}
		return config.Source{Kind: "gcs", GCS: config.SourceGCS{Bucket: bucket, Object: object}}, nil
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return config.Source{Kind: "http", HTTP: config.SourceHTTP{URL: loc}}, nil
	case strings.Contains(loc, "://"):
		return config.Source{}, fmt.Errorf("unsupported location scheme in %q", loc)
	}
	return config.Source{Kind: "file", File: config.SourceFile{Path: loc}}, nil
}

// ExpandInputs returns the configured inputs followed by one input per
// inputs_list entry, each with the default parser and layout. Unnamed inputs
// take their source's base name.
func ExpandInputs(p config.Pipeline) ([]config.Input, error) {
	out := append([]config.Input(nil), p.Inputs...)
	for i := range out {
		if out[i].Name == "" {
			out[i].Name = out[i].Source.BaseName()
		}
	}
	if strings.TrimSpace(p.InputsList) == "" {
		return out, nil
	}
	locs, err := file.ReadList(p.InputsList)
	if err != nil {
		return nil, fmt.Errorf("inputs_list: %w", err)
	}
	for _, loc := range locs {
		src, err := SourceFor(loc)
		if err != nil {
			return nil, fmt.Errorf("inputs_list: %w", err)
		}
		out = append(out, config.Input{
			Name:   src.BaseName(),
			Source: src,
			Parser: config.Parser{Kind: "csv"},
			Layout: config.DefaultLayoutName,
		})
	}
	return out, nil
}

// BuildParser returns a fresh parser for one input. name picks the default
// delimiter from its extension. Parsers are not shared between goroutines.
func BuildParser(pc config.Parser, name string, logger *zap.Logger) (parser.Parser, error) {
	switch pc.Kind {
	case "", "csv":
		o := pc.Options
		return csv.NewParser(csv.Options{
			HasHeader:      o.Bool("has_header", true),
			Comma:          o.Rune("comma", csv.CommaFor(name)),
			TrimSpace:      o.Bool("trim_space", true),
			ExpectedFields: o.Int("expected_fields", 0),
			HeaderMap:      o.StringMap("header_map"),
			NullValues:     o.StringSlice("null_values"),
			Logger:         logger,
		}), nil
	}
	return nil, fmt.Errorf("unsupported parser kind %q", pc.Kind)
}

// layoutSet holds every layout a run uses, raw and compiled.
type layoutSet struct {
	raw      map[string]schema.Layout
	compiled map[string]*schema.Compiled
}

// loadLayouts loads and compiles the layouts named by inputs. The name
// "afcars" resolves to the embedded layout unless p.Layouts overrides it.
// Relative layout paths are taken as given.
func loadLayouts(p config.Pipeline, inputs []config.Input) (layoutSet, error) {
	set := layoutSet{raw: map[string]schema.Layout{}, compiled: map[string]*schema.Compiled{}}
	for _, in := range inputs {
		name := in.Layout
		if name == "" {
			name = config.DefaultLayoutName
		}
		if _, done := set.compiled[name]; done {
			continue
		}
		var (
			l   schema.Layout
			err error
		)
		if path, ok := p.Layouts[name]; ok {
			l, err = schema.LoadLayout(filepath.Clean(path))
		} else if name == config.DefaultLayoutName {
			l = schema.DefaultLayout()
		} else {
			err = fmt.Errorf("unknown layout %q", name)
		}
		if err != nil {
			return layoutSet{}, fmt.Errorf("layout %s: %w", name, err)
		}
		c, err := l.Compile()
		if err != nil {
			return layoutSet{}, fmt.Errorf("layout %s: %w", name, err)
		}
		set.raw[name] = l
		set.compiled[name] = c
	}
	return set, nil
}
