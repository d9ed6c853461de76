package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a job file. The format follows the extension: .json, .yaml or
// .yml. Unknown keys are rejected so typos surface before a run starts.
// ${VAR} references in secrets and addresses are expanded from the
// environment after decoding.
func Load(path string) (Job, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("config: %w", err)
	}
	var j Job
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		j, err = DecodeJSON(bytes.NewReader(b))
	case ".yaml", ".yml":
		j, err = DecodeYAML(bytes.NewReader(b))
	default:
		return Job{}, fmt.Errorf("config: %s: unsupported job file extension %q", path, ext)
	}
	if err != nil {
		return Job{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if j.Job == "" {
		j.Job = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	j.ExpandEnv(os.LookupEnv)
	return j, nil
}

// DecodeJSON decodes a job from JSON.
func DecodeJSON(r io.Reader) (Job, error) {
	var j Job
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&j); err != nil {
		return Job{}, fmt.Errorf("decode json: %w", err)
	}
	return j, nil
}

// DecodeYAML decodes a job from YAML. An empty document is an error.
func DecodeYAML(r io.Reader) (Job, error) {
	var j Job
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&j); err != nil {
		if errors.Is(err, io.EOF) {
			return Job{}, fmt.Errorf("decode yaml: empty document")
		}
		return Job{}, fmt.Errorf("decode yaml: %w", err)
	}
	return j, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expand replaces ${VAR} with its value. Unset variables expand to "".
// A bare $ is left alone; DSN passwords may contain one.
func expand(s string, lookup func(string) (string, bool)) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		v, _ := lookup(ref[2 : len(ref)-1])
		return v
	})
}

// ExpandEnv expands ${VAR} references in the storage DSN, the source
// locations, the HTTP headers and the S3 credentials.
func (j *Job) ExpandEnv(lookup func(string) (string, bool)) {
	j.Storage.DSN = expand(j.Storage.DSN, lookup)
	j.Source.File.Path = expand(j.Source.File.Path, lookup)
	j.Source.HTTP.URL = expand(j.Source.HTTP.URL, lookup)
	for k, v := range j.Source.HTTP.Headers {
		j.Source.HTTP.Headers[k] = expand(v, lookup)
	}
	s3 := &j.Source.S3
	s3.Endpoint = expand(s3.Endpoint, lookup)
	s3.Bucket = expand(s3.Bucket, lookup)
	s3.Key = expand(s3.Key, lookup)
	s3.AccessKeyID = expand(s3.AccessKeyID, lookup)
	s3.SecretAccessKey = expand(s3.SecretAccessKey, lookup)
}
