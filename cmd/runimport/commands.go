package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/runimport/internal/config"
	"github.com/JonMunkholm/runimport/internal/core"
	"github.com/JonMunkholm/runimport/internal/logging"
	"github.com/JonMunkholm/runimport/internal/store"
)

// errFileTooLarge matches the FILE001 user message.
var errFileTooLarge = errors.New("file too large")

// cli holds state shared by every subcommand after the root pre-run.
type cli struct {
	out    io.Writer
	errOut io.Writer

	logLevel  string
	logFormat string
	envFile   string

	cfg    *config.Config
	engine *core.Engine
	logger *slog.Logger
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "runimport",
		Short:         "Recover and import workout CSV exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	pf.StringVar(&c.logFormat, "log-format", "", "log format (text, json); overrides LOG_FORMAT")
	pf.StringVar(&c.envFile, "env-file", "", "load environment variables from this file first")

	root.AddCommand(c.previewCmd(), c.importCmd(), c.detectCmd())
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Logging.Format = c.logFormat
	}

	c.cfg = cfg
	c.logger = logging.New(c.errOut, cfg.Logging.Level, cfg.Logging.Format)
	c.engine = core.NewEngine(core.WithHeuristics(cfg.Import.Heuristics()))
	cmd.SetContext(logging.WithLogger(cmd.Context(), c.logger))
	return nil
}

func (c *cli) previewCmd() *cobra.Command {
	var (
		hint    string
		maxRows int
	)
	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Decode a file and report its format, columns and lap analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.readFile(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-rows") {
				maxRows = c.cfg.Import.PreviewRows
			}
			res, err := c.engine.Preview(cmd.Context(), data, core.PreviewOptions{
				Encoding: hint,
				MaxRows:  maxRows,
			})
			if werr := c.writeJSON(res); werr != nil {
				return werr
			}
			if err != nil {
				return errors.New(core.FormatUserError(err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&hint, "encoding", "", "encoding hint, e.g. shift_jis")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "sample row cap (default IMPORT_PREVIEW_ROWS)")
	return cmd
}

// fileResult is one file's outcome in the import output.
type fileResult struct {
	File   string             `json:"file"`
	Result *core.ImportResult `json:"result,omitempty"`
	Stored int64              `json:"stored"`
	Error  string             `json:"error,omitempty"`
}

func (c *cli) importCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Extract workout records from one or more files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var st *store.Store
			if save {
				var err error
				st, err = c.openStore(ctx)
				if err != nil {
					return err
				}
				defer st.Close()
			}

			results := c.importFiles(ctx, args, st)
			if err := c.writeJSON(results); err != nil {
				return err
			}

			var failed int
			for _, r := range results {
				if r.Error != "" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "save records to DATABASE_URL")
	return cmd
}

// importFiles runs one import per file, at most Upload.MaxConcurrent at a
// time. Results keep the argument order.
func (c *cli) importFiles(ctx context.Context, paths []string, st *store.Store) []fileResult {
	results := make([]fileResult, len(paths))
	limiter := core.NewImportLimiter(c.cfg.Upload.MaxConcurrent, c.cfg.Upload.MaxWaitTime)

	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			results[i] = c.importOne(ctx, limiter, path, st)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *cli) importOne(ctx context.Context, limiter *core.ImportLimiter, path string, st *store.Store) fileResult {
	r := fileResult{File: path}
	fail := func(err error) fileResult {
		r.Error = core.FormatUserError(err)
		return r
	}

	if err := limiter.Acquire(ctx); err != nil {
		return fail(err)
	}
	defer limiter.Release()

	data, err := c.readFile(path)
	if err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Upload.Timeout)
	defer cancel()

	res, err := c.engine.Import(ctx, data, filepath.Base(path))
	r.Result = res
	if err != nil {
		return fail(err)
	}

	if st != nil {
		n, err := st.SaveWorkouts(ctx, res)
		if err != nil {
			return fail(fmt.Errorf("save workouts: %w", err))
		}
		r.Stored = n
	}
	return r
}

func (c *cli) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, c.cfg.Database)
	if err != nil {
		return nil, errors.New(core.FormatUserError(err))
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("prepare schema: %w", err)
	}
	return st, nil
}

// detectOutput lists every trial decode with its score.
type detectOutput struct {
	File       string            `json:"file"`
	Encoding   string            `json:"encoding"`
	Candidates []detectCandidate `json:"candidates"`
}

type detectCandidate struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Sample string `json:"sample"`
}

func (c *cli) detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>",
		Short: "Score each candidate encoding for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := c.readFile(args[0])
			if err != nil {
				return err
			}

			d := c.engine.EncodingDetector(cmd.Context())

			out := detectOutput{
				File:       args[0],
				Encoding:   d.Detect(data),
				Candidates: []detectCandidate{},
			}
			for _, cand := range d.Candidates(data) {
				out.Candidates = append(out.Candidates, detectCandidate(cand))
			}
			return c.writeJSON(out)
		},
	}
}

// readFile reads path, refusing files over Upload.MaxFileSize.
func (c *cli) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > c.cfg.Upload.MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%d bytes, limit %d)", path, errFileTooLarge, info.Size(), c.cfg.Upload.MaxFileSize)
	}
	return os.ReadFile(path)
}

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
