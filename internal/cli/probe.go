package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"rowexport/internal/config"
	"rowexport/internal/parser"
	"rowexport/internal/probe"

	"github.com/spf13/cobra"
)

type probeFlags struct {
	name       string
	table      string
	format     string
	comma      string
	storage    string
	dsn        string
	sampleRows int
	sizeText   bool
	insecure   bool
	out        string
}

func newProbeCmd(g *globals) *cobra.Command {
	var f probeFlags
	cmd := &cobra.Command{
		Use:   "probe source",
		Short: "Draft a job file from a CSV or Parquet source",
		Long: `Load a local file or http(s) URL, infer one model field per column and
print a job file to edit and pass to export.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			j := draftJob(args[0], f)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			drafted, err := probe.Draft(ctx, j, probe.Options{
				Table:      f.table,
				SampleRows: f.sampleRows,
				SizeText:   f.sizeText,
			}, g.log)
			if err != nil {
				return err
			}
			body, err := probe.Render(drafted)
			if err != nil {
				return err
			}
			if f.out == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(f.out, body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", f.out)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "job name (default: derived from the source name)")
	fl.StringVar(&f.table, "table", "", "model table (default: the normalized job name)")
	fl.StringVar(&f.format, "format", "", "input format: csv or parquet (default: from the extension)")
	fl.StringVar(&f.comma, "comma", "", "CSV field delimiter")
	fl.StringVar(&f.storage, "storage", "postgres", "storage kind written to the job")
	fl.StringVar(&f.dsn, "dsn", "", "storage DSN written to the job; ${VAR} references are kept")
	fl.IntVar(&f.sampleRows, "sample-rows", 0, "rows inspected per column (0: all)")
	fl.BoolVar(&f.sizeText, "size-text", false, "set max_length on text fields to the longest sampled value")
	fl.BoolVar(&f.insecure, "insecure", false, "skip TLS verification for https sources")
	fl.StringVarP(&f.out, "output", "o", "", "write the job file here instead of stdout")
	return cmd
}

// draftJob builds the job skeleton probe.Draft fills in.
func draftJob(src string, f probeFlags) config.Job {
	j := config.Job{
		Job:     f.name,
		Format:  config.Format{Kind: f.format},
		Storage: config.Storage{Kind: f.storage, DSN: f.dsn, EnsureTable: true},
		Export:  config.Export{Validate: true},
	}
	if f.comma != "" {
		j.Format.Options = config.Options{"comma": f.comma}
	}
	base := src
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		j.Source = config.Source{Kind: "http", HTTP: config.SourceHTTP{URL: src, InsecureSkipVerify: f.insecure}}
		if u, err := url.Parse(src); err == nil {
			base = u.Path
		}
	} else {
		j.Source = config.Source{Kind: "file", File: config.SourceFile{Path: src}}
	}
	if j.Job == "" {
		name := strings.TrimSuffix(path.Base(strings.ReplaceAll(base, "\\", "/")), ".gz")
		j.Job = parser.NormalizeName(strings.TrimSuffix(name, path.Ext(name)))
	}
	return j
}
