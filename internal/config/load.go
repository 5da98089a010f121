package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings. Secrets and endpoints
// belong in the environment rather than in checked-in pipeline files.
const (
	EnvStorageDSN     = "FCCLEAN_STORAGE_DSN"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDatadogAddr    = "DD_AGENT_ADDR"
	EnvMetricsBackend = "METRICS_BACKEND"
)

// Load reads a pipeline file, decodes it as YAML (.yaml, .yml) or JSON
// (anything else), applies environment overrides and fills defaults. Unknown
// fields are rejected. Load does not validate; call ValidatePipeline.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read pipeline %s: %w", path, err)
	}
	var p Pipeline
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		p, err = DecodeYAML(b)
	default:
		p, err = DecodeJSON(b)
	}
	if err != nil {
		return Pipeline{}, fmt.Errorf("%s: %w", path, err)
	}
	ApplyEnv(&p, os.LookupEnv)
	p.ApplyDefaults()
	return p, nil
}

// DecodeJSON decodes a JSON pipeline, rejecting unknown fields.
func DecodeJSON(b []byte) (Pipeline, error) {
	var p Pipeline
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode json pipeline: %w", err)
	}
	return p, nil
}

// DecodeYAML decodes a YAML pipeline, rejecting unknown fields.
func DecodeYAML(b []byte) (Pipeline, error) {
	var p Pipeline
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode yaml pipeline: %w", err)
	}
	return p, nil
}

// ApplyEnv overrides endpoint and secret settings from the environment.
// lookup is usually os.LookupEnv; empty values are ignored.
func ApplyEnv(p *Pipeline, lookup func(string) (string, bool)) {
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get(EnvStorageDSN); ok {
		p.Storage.DB.DSN = v
	}
	if v, ok := get(EnvMetricsBackend); ok {
		p.Metrics.Backend = v
	}
	if v, ok := get(EnvPushgatewayURL); ok {
		p.Metrics.PushgatewayURL = v
	}
	if v, ok := get(EnvDatadogAddr); ok {
		p.Metrics.DatadogAddr = v
	}
}

// ApplyDefaults fills zero values: csv parsers, the afcars layout, input
// names and runtime sizes.
func (p *Pipeline) ApplyDefaults() {
	if p.CodeBook.Parser.Kind == "" {
		p.CodeBook.Parser.Kind = "csv"
	}
	for i := range p.Inputs {
		in := &p.Inputs[i]
		if in.Parser.Kind == "" {
			in.Parser.Kind = "csv"
		}
		if in.Layout == "" {
			in.Layout = DefaultLayoutName
		}
		if in.Name == "" {
			in.Name = in.Source.BaseName()
		}
	}
	if p.Runtime.InputWorkers <= 0 {
		p.Runtime.InputWorkers = 4
	}
	if p.Runtime.BatchSize <= 0 {
		p.Runtime.BatchSize = 1000
	}
	if p.Runtime.ChannelBuffer <= 0 {
		p.Runtime.ChannelBuffer = 2 * p.Runtime.BatchSize
	}
}

// BaseName returns the last path element of the source location, used to
// name inputs and to pick a delimiter from the extension.
func (s Source) BaseName() string {
	var loc string
	switch s.Kind {
	case "file":
		loc = s.File.Path
	case "http":
		loc = s.HTTP.URL
		if i := strings.IndexAny(loc, "?#"); i >= 0 {
			loc = loc[:i]
		}
	case "gcs":
		loc = s.GCS.Object
	}
	if loc == "" {
		return ""
	}
	return filepath.Base(filepath.FromSlash(loc))
}
