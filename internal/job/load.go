package job

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rowexport/internal/config"
	"rowexport/internal/datasource"
	"rowexport/internal/datasource/file"
	"rowexport/internal/datasource/httpds"
	"rowexport/internal/datasource/objectstore"
	"rowexport/internal/logging"
	"rowexport/internal/parser"
	csvparser "rowexport/internal/parser/csv"
	pqparser "rowexport/internal/parser/parquet"
	"rowexport/pkg/dataset"
)

// Load opens the job's source and parses it into a dataset. skipped counts
// malformed rows dropped by the loader.
func Load(ctx context.Context, j config.Job, log logging.Logger) (ds *dataset.Dataset, skipped int, err error) {
	if log == nil {
		log = logging.Discard{}
	}
	p, err := newParser(j, log)
	if err != nil {
		return nil, 0, err
	}
	rc, err := openSourceFn(ctx, j, log)
	if err != nil {
		return nil, 0, fmt.Errorf("open source %s: %w", j.SourceName(), err)
	}
	defer rc.Close()

	ds, skipped, err = p.Parse(rc)
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", j.SourceName(), err)
	}
	return ds, skipped, nil
}

func openSource(ctx context.Context, j config.Job, log logging.Logger) (io.ReadCloser, error) {
	src, err := newSource(j, log)
	if err != nil {
		return nil, err
	}
	return src.Open(ctx)
}

func newSource(j config.Job, log logging.Logger) (datasource.Source, error) {
	s := j.Source
	switch s.Kind {
	case "file":
		return file.NewLocal(s.File.Path), nil
	case "http":
		var timeout time.Duration
		if s.HTTP.Timeout != "" {
			d, err := time.ParseDuration(s.HTTP.Timeout)
			if err != nil {
				return nil, fmt.Errorf("%w: source.http.timeout: %w", ErrInvalidJob, err)
			}
			timeout = d
		}
		hdr := http.Header{}
		for k, v := range s.HTTP.Headers {
			hdr.Set(k, v)
		}
		c := httpds.NewClient(httpds.Config{
			Timeout:            timeout,
			MaxRetries:         s.HTTP.MaxRetries,
			InsecureSkipVerify: s.HTTP.InsecureSkipVerify,
			Headers:            hdr,
			Logger:             log,
		})
		return httpds.NewSource(c, s.HTTP.URL, nil), nil
	case "s3":
		obj, err := objectstore.New(objectstore.Config{
			Endpoint:        s.S3.Endpoint,
			AccessKeyID:     s.S3.AccessKeyID,
			SecretAccessKey: s.S3.SecretAccessKey,
			Region:          s.S3.Region,
			UseSSL:          s.S3.UseSSL,
			PathStyle:       s.S3.PathStyle,
			Bucket:          s.S3.Bucket,
			Key:             s.S3.Key,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("%w: unsupported source.kind=%s", ErrInvalidJob, s.Kind)
}

func newParser(j config.Job, log logging.Logger) (parser.Parser, error) {
	common := j.ParserOptions()
	opts := j.Format.Options
	switch kind := j.FormatKind(); kind {
	case config.FormatCSV:
		comma := opts.Rune("comma", 0)
		if comma == 0 && strings.HasSuffix(strings.TrimSuffix(strings.ToLower(j.SourceName()), ".gz"), ".tsv") {
			comma = '\t'
		}
		return csvparser.NewParser(csvparser.Options{
			NoHeader:         opts.Bool("no_header", false),
			Comma:            comma,
			TrimSpace:        opts.Bool("trim_space", false),
			HeaderMap:        opts.StringMap("header_map"),
			NormalizeHeaders: opts.Bool("normalize_headers", false),
			SkipBadRows:      opts.Bool("skip_bad_rows", false),
			Common:           common,
			Logger:           log,
		}), nil
	case config.FormatParquet:
		return pqparser.NewParser(pqparser.Options{
			Parallel: int64(opts.Int("parallel", 1)),
			Common:   common,
		}), nil
	case "":
		return nil, fmt.Errorf("%w: format.kind is empty and cannot be inferred from %q", ErrInvalidJob, j.SourceName())
	default:
		return nil, fmt.Errorf("%w: unsupported format.kind=%s", ErrInvalidJob, kind)
	}
}
