package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/unijord/contentmeta/pkg/catalog"
	"github.com/unijord/contentmeta/pkg/job"
	"github.com/unijord/contentmeta/pkg/schema"
	"github.com/unijord/contentmeta/pkg/sink"
)

var (
	runInput     string
	runCatalog   string
	runOutput    string
	runBatchSize int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load change records into an Arrow file",
	Long: `Reads newline-delimited JSON change records, ensures the table exists in
the local catalog and writes the mapped rows to an Arrow IPC file.
Use "-" as input to read from stdin.`,
	Args: cobra.NoArgs,
	RunE: runJob,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "-", "change records file (NDJSON)")
	runCmd.Flags().StringVar(&runCatalog, "catalog", "", "local catalog database; empty skips table creation")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Arrow IPC output file")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", sink.DefaultBatchSize, "rows per record batch")
	rootCmd.AddCommand(runCmd)
}

func runJob(cmd *cobra.Command, _ []string) (err error) {
	if runOutput == "" {
		return errors.New("--output is required")
	}
	values, err := loadValues()
	if err != nil {
		return err
	}
	// fail before any output file is created
	if err := job.Validate(values); err != nil {
		return err
	}
	logger := newLogger(cmd)

	s, err := schema.FromConfig(values)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if runInput != "-" {
		f, err := os.Open(runInput)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	opts := job.Options{Logger: logger}
	if runCatalog != "" {
		cat, err := catalog.Open(runCatalog)
		if err != nil {
			return err
		}
		defer cat.Close()
		opts.Catalog = cat
	}

	out, err := sink.NewArrowFileSink(runOutput, s, sink.ArrowFileConfig{
		BatchSize: runBatchSize,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	opts.Sink = out

	j, err := job.New(values, opts)
	if err != nil {
		return err
	}
	stats, err := j.RunReader(cmd.Context(), in)
	if err != nil {
		return err
	}

	cmd.Printf("read=%d ignored=%d filtered=%d inserted=%d deleted=%d\n",
		stats.Read, stats.Ignored, stats.Filtered, stats.Inserted, stats.Deleted)
	return nil
}
