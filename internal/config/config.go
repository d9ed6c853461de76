// Package config defines the job file: where rows come from, how they are
// parsed, the model they are exported into, and the store that receives them.
// Job files are JSON or YAML; both decode into the same Job value.
//
// Example (YAML, trimmed):
//
//	job: customers
//	source: { kind: file, file: { path: data/customers.csv } }
//	format: { kind: csv, parse_dates: [signed_up], options: { trim_space: true } }
//	index: [customer_id]
//	model:
//	  table: customers
//	  fields:
//	    - { name: customer_id, type: integer, primary_key: true }
//	    - { name: name, type: text, max_length: 200 }
//	    - { name: signed_up, type: datetime, null: true }
//	storage: { kind: postgres, dsn: "${CUSTOMERS_DSN}", ensure_table: true }
//	export: { mode: update, bulk_size: 5000, time_zone: Europe/Prague }
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Job is the top-level object decoded from a job file.
type Job struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" yaml:"job,omitempty"`

	Source Source `json:"source" yaml:"source,omitempty"`
	Format Format `json:"format" yaml:"format,omitempty"`

	// Index names the dataset columns moved into the index. Index levels
	// are visible to the exporter like columns.
	Index []string `json:"index" yaml:"index,omitempty"`

	Model   Model   `json:"model" yaml:"model,omitempty"`
	Storage Storage `json:"storage" yaml:"storage,omitempty"`
	Export  Export  `json:"export" yaml:"export,omitempty"`
}

// Source identifies the input. Kind is "file", "http" or "s3".
type Source struct {
	Kind string     `json:"kind" yaml:"kind,omitempty"`
	File SourceFile `json:"file" yaml:"file,omitempty"`
	HTTP SourceHTTP `json:"http" yaml:"http,omitempty"`
	S3   SourceS3   `json:"s3" yaml:"s3,omitempty"`
}

// SourceFile reads a local path; "-" is standard input and ".gz" files are
// decompressed.
type SourceFile struct {
	Path string `json:"path" yaml:"path,omitempty"`
}

// SourceHTTP downloads a URL with retries.
type SourceHTTP struct {
	URL                string            `json:"url" yaml:"url,omitempty"`
	Headers            map[string]string `json:"headers" yaml:"headers,omitempty"`
	Timeout            string            `json:"timeout" yaml:"timeout,omitempty"`
	MaxRetries         int               `json:"max_retries" yaml:"max_retries,omitempty"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify" yaml:"insecure_skip_verify,omitempty"`
}

// SourceS3 reads one object from S3-compatible storage.
type SourceS3 struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint,omitempty"`
	Bucket          string `json:"bucket" yaml:"bucket,omitempty"`
	Key             string `json:"key" yaml:"key,omitempty"`
	Region          string `json:"region" yaml:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key,omitempty"`
	UseSSL          bool   `json:"use_ssl" yaml:"use_ssl,omitempty"`
	PathStyle       bool   `json:"path_style" yaml:"path_style,omitempty"`
}

// Format selects the loader. An empty Kind is inferred from the source
// name's extension.
type Format struct {
	Kind string `json:"kind" yaml:"kind,omitempty"`

	// NA replaces the default missing-value tokens.
	NA []string `json:"na" yaml:"na,omitempty"`

	ParseDates  []string `json:"parse_dates" yaml:"parse_dates,omitempty"`
	DateLayouts []string `json:"date_layouts" yaml:"date_layouts,omitempty"`

	// KeepText disables type inference for text formats.
	KeepText bool `json:"keep_text" yaml:"keep_text,omitempty"`

	// Options is interpreted by the loader. For CSV:
	//   comma (string), no_header (bool), trim_space (bool),
	//   normalize_headers (bool), skip_bad_rows (bool), header_map (object)
	// For Parquet:
	//   parallel (int)
	Options Options `json:"options" yaml:"options,omitempty"`
}

// Model declares the destination table.
type Model struct {
	Table          string     `json:"table" yaml:"table,omitempty"`
	Fields         []Field    `json:"fields" yaml:"fields,omitempty"`
	UniqueTogether [][]string `json:"unique_together" yaml:"unique_together,omitempty"`
}

// Field declares one column. Type is one of text, integer, float, boolean,
// date, datetime (or a common alias).
type Field struct {
	Name       string `json:"name" yaml:"name,omitempty"`
	Type       string `json:"type" yaml:"type,omitempty"`
	Null       bool   `json:"null" yaml:"null,omitempty"`
	Default    any    `json:"default" yaml:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key" yaml:"primary_key,omitempty"`
	MaxLength  int    `json:"max_length" yaml:"max_length,omitempty"`
}

var fieldKeys = map[string]bool{
	"name": true, "type": true, "null": true,
	"default": true, "primary_key": true, "max_length": true,
}

// UnmarshalYAML reads a plain `null` key as the field name; YAML would
// otherwise resolve it to a null key and drop it. Unknown keys are rejected.
func (f *Field) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			k := value.Content[i]
			if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!null" && strings.EqualFold(k.Value, "null") {
				k.Tag = "!!str"
			}
			if !fieldKeys[k.Value] {
				return fmt.Errorf("line %d: field %s not found in model field", k.Line, k.Value)
			}
		}
	}
	type plain Field
	return value.Decode((*plain)(f))
}

// Storage selects the backend registered under Kind.
type Storage struct {
	Kind string `json:"kind" yaml:"kind,omitempty"`
	DSN  string `json:"dsn" yaml:"dsn,omitempty"`

	// EnsureTable creates the model's table before exporting when missing.
	EnsureTable bool `json:"ensure_table" yaml:"ensure_table,omitempty"`
}

// Export carries the exporter options.
type Export struct {
	// Mode is create, update or force-save.
	Mode     string `json:"mode" yaml:"mode,omitempty"`
	BulkSize int    `json:"bulk_size" yaml:"bulk_size,omitempty"`
	TimeZone string `json:"time_zone" yaml:"time_zone,omitempty"`
	DryRun   bool   `json:"dry_run" yaml:"dry_run,omitempty"`
	Validate bool   `json:"validate" yaml:"validate,omitempty"`
}

// Options fetches typed values from a free-form map. Missing keys and values
// of an unexpected type yield the provided default.
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

// Int returns the int value for key or def. JSON numbers arrive as float64
// and YAML numbers as int; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def. Used for
// single-character settings such as the CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the string-valued entries of the object at key. The
// result is never nil.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns the string elements of the array at key, or nil.
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

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// UnmarshalYAML is the YAML counterpart of UnmarshalJSON.
func (o *Options) UnmarshalYAML(value *yaml.Node) error {
	var tmp map[string]any
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	if tmp == nil {
		tmp = map[string]any{}
	}
	*o = Options(tmp)
	return nil
}
