package config

import (
	"fmt"
	"strings"
	"time"

	"rowexport/pkg/export"
	"rowexport/pkg/model"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue is a single lint finding. Path is a dotted path into the job
// (e.g. "storage.dsn", "model.fields[2].type").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// KnownStorageKinds lists the kinds ValidateJob accepts without a warning.
// The CLI overwrites it with the registered backends.
var KnownStorageKinds = []string{"memory", "mssql", "mysql", "postgres", "sqlite"}

// ValidateJob lints a job statically. It does not mutate the job and never
// touches the network or the filesystem.
func ValidateJob(j Job) []Issue {
	var issues []Issue

	if strings.TrimSpace(j.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs and metrics",
		})
	}
	issues = append(issues, validateSource(j.Source)...)
	issues = append(issues, validateFormat(j)...)
	issues = append(issues, validateModel(j.Model, j.Index)...)
	issues = append(issues, validateStorage(j.Storage)...)
	issues = append(issues, validateExport(j.Export, j.Model)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch strings.TrimSpace(s.Kind) {
	case "":
		return append(issues, Issue{SeverityError, "source.kind", "source.kind must not be empty"})
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{SeverityError, "source.file.path", "file source requires a non-empty path"})
		}
	case "http":
		u := strings.TrimSpace(s.HTTP.URL)
		if u == "" {
			issues = append(issues, Issue{SeverityError, "source.http.url", "http source requires a url"})
		} else if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			issues = append(issues, Issue{SeverityError, "source.http.url", fmt.Sprintf("url %q must start with http:// or https://", u)})
		}
		if s.HTTP.Timeout != "" {
			if _, err := time.ParseDuration(s.HTTP.Timeout); err != nil {
				issues = append(issues, Issue{SeverityError, "source.http.timeout", err.Error()})
			}
		}
		if s.HTTP.MaxRetries < 0 {
			issues = append(issues, Issue{SeverityError, "source.http.max_retries", "max_retries must not be negative"})
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, Issue{SeverityWarning, "source.http.insecure_skip_verify", "TLS verification is disabled"})
		}
	case "s3":
		if s.S3.Endpoint == "" {
			issues = append(issues, Issue{SeverityError, "source.s3.endpoint", "s3 source requires an endpoint"})
		}
		if s.S3.Bucket == "" || s.S3.Key == "" {
			issues = append(issues, Issue{SeverityError, "source.s3", "s3 source requires bucket and key"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("unknown source kind %q (want file, http or s3)", s.Kind)})
	}
	return issues
}

func validateFormat(j Job) []Issue {
	var issues []Issue

	switch j.FormatKind() {
	case "":
		issues = append(issues, Issue{SeverityError, "format.kind", "format.kind is empty and cannot be inferred from the source name"})
	case FormatCSV:
		if c := j.Format.Options.String("comma", ""); c != "" && len([]rune(c)) != 1 {
			issues = append(issues, Issue{SeverityError, "format.options.comma", fmt.Sprintf("comma must be a single character, got %q", c)})
		}
	case FormatParquet:
		if j.Format.KeepText || len(j.Format.NA) > 0 {
			issues = append(issues, Issue{SeverityWarning, "format", "na and keep_text have no effect on parquet input"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "format.kind", fmt.Sprintf("unknown format %q (want csv or parquet)", j.Format.Kind)})
	}
	return issues
}

func validateModel(m Model, index []string) []Issue {
	var issues []Issue

	if strings.TrimSpace(m.Table) == "" {
		issues = append(issues, Issue{SeverityError, "model.table", "model.table must not be empty"})
	}
	if len(m.Fields) == 0 {
		return append(issues, Issue{SeverityError, "model.fields", "model declares no fields"})
	}

	seen := map[string]bool{}
	pks := 0
	for i, f := range m.Fields {
		path := fmt.Sprintf("model.fields[%d]", i)
		switch {
		case f.Name == "":
			issues = append(issues, Issue{SeverityError, path + ".name", "field name must not be empty"})
		case f.Name == model.IdentityField:
			issues = append(issues, Issue{SeverityError, path + ".name", fmt.Sprintf("%q is reserved for the identity column", model.IdentityField)})
		case seen[f.Name]:
			issues = append(issues, Issue{SeverityError, path + ".name", fmt.Sprintf("duplicate field %q", f.Name)})
		}
		seen[f.Name] = true
		if f.PrimaryKey {
			pks++
		}

		ft, err := model.ParseFieldType(f.Type)
		if err != nil {
			issues = append(issues, Issue{SeverityError, path + ".type", err.Error()})
			continue
		}
		if _, err := coerceDefault(ft, f.Default); err != nil {
			issues = append(issues, Issue{SeverityError, path + ".default", err.Error()})
		}
		if f.MaxLength < 0 {
			issues = append(issues, Issue{SeverityError, path + ".max_length", "max_length must not be negative"})
		} else if f.MaxLength > 0 && ft != model.Text {
			issues = append(issues, Issue{SeverityWarning, path + ".max_length", "max_length only applies to text fields"})
		}
		if f.PrimaryKey && f.Null {
			issues = append(issues, Issue{SeverityError, path, "a primary key cannot be nullable"})
		}
	}
	if pks > 1 {
		issues = append(issues, Issue{SeverityError, "model.fields", fmt.Sprintf("%d primary keys declared, want at most 1", pks)})
	}

	for i, tuple := range m.UniqueTogether {
		path := fmt.Sprintf("model.unique_together[%d]", i)
		if len(tuple) == 0 {
			issues = append(issues, Issue{SeverityError, path, "unique tuple is empty"})
		}
		for _, name := range tuple {
			if !seen[name] {
				issues = append(issues, Issue{SeverityError, path, fmt.Sprintf("unknown field %q", name)})
			}
		}
	}
	for i, name := range index {
		if !seen[name] {
			issues = append(issues, Issue{SeverityWarning, fmt.Sprintf("index[%d]", i), fmt.Sprintf("index level %q is not a model field and will be ignored", name)})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	kind := strings.TrimSpace(s.Kind)
	if kind == "" {
		return append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	}
	known := false
	for _, k := range KnownStorageKinds {
		if k == kind {
			known = true
			break
		}
	}
	if !known {
		issues = append(issues, Issue{SeverityError, "storage.kind", fmt.Sprintf("unsupported storage.kind=%s", kind)})
	}
	if kind != "memory" && strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.dsn", "storage.dsn must not be empty"})
	}
	return issues
}

func validateExport(e Export, m Model) []Issue {
	var issues []Issue

	mode, err := export.ParseMode(e.Mode)
	if err != nil {
		issues = append(issues, Issue{SeverityError, "export.mode", err.Error()})
	}
	if e.BulkSize < 0 {
		issues = append(issues, Issue{SeverityError, "export.bulk_size", "bulk_size must not be negative"})
	} else if e.BulkSize > 0 && mode != export.CreateAll {
		issues = append(issues, Issue{SeverityWarning, "export.bulk_size", fmt.Sprintf("bulk_size only applies to create mode, not %s", mode)})
	}
	if e.TimeZone != "" {
		if _, err := time.LoadLocation(e.TimeZone); err != nil {
			issues = append(issues, Issue{SeverityError, "export.time_zone", err.Error()})
		}
	}
	if mode == export.UpdateExisting && len(m.UniqueTogether) == 0 {
		hasPK := false
		for _, f := range m.Fields {
			hasPK = hasPK || f.PrimaryKey
		}
		if !hasPK {
			issues = append(issues, Issue{SeverityWarning, "export.mode", "update mode without unique_together or a primary key matches rows by id, which datasets rarely carry"})
		}
	}
	return issues
}
