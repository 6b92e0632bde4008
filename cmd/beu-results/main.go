// Command beu-results serves and fetches BEU semester results.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/beu-results/pkg/batch"
	"github.com/Sternrassler/beu-results/pkg/config"
	"github.com/Sternrassler/beu-results/pkg/logging"
	"github.com/Sternrassler/beu-results/pkg/planner"
	"github.com/Sternrassler/beu-results/pkg/result"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Getenv).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "beu-results",
		Short:        "Batch lookups of BEU semester results",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a JSON5 config file")

	load := func() (config.Config, error) {
		return loadConfig(configPath, getenv)
	}

	root.AddCommand(newServeCmd(load), newFetchCmd(load), newPlanCmd())
	return root
}

// loadConfig reads the file at path, applies the environment and validates
// the result.
func loadConfig(path string, getenv func(string) string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	logging.Setup(cfg.LoggingConfig())
	return cfg, nil
}

func newServeCmd(load func() (config.Config, error)) *cobra.Command {
	var mode, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP result service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if mode != "" {
				cfg.Server.Mode = strings.ToLower(mode)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "service mode: core or edge")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, e.g. :8080")
	return cmd
}

// serve runs the HTTP server until ctx is done.
func serve(ctx context.Context, cfg config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServer(a).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("mode", cfg.Server.Mode).
			Str("user_agent", cfg.Portal.UserAgent).
			Msg("Starting result server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down result server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newFetchCmd(load func() (config.Config, error)) *cobra.Command {
	var (
		year, sem, regNo string
		edge, asTable    bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Look up a batch of results and print them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var entries []result.Entry
			if edge {
				entries, err = a.aggregator.Run(cmd.Context(), batch.EdgeRequest{Semester: sem, Year: year, RegNo: regNo})
			} else {
				semester := batch.DefaultSemester
				if sem != "" {
					s, ok := batch.Semester(sem)
					if !ok {
						return fmt.Errorf("invalid semester %q", sem)
					}
					semester = s
				}
				entries, err = a.orchestrator.Run(cmd.Context(), batch.Request{Year: year, Semester: semester, RegNo: regNo})
			}
			if entries != nil {
				if asTable {
					renderTable(cmd.OutOrStdout(), entries)
				} else if werr := writeEntries(cmd.OutOrStdout(), entries); werr != nil {
					return werr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&year, "year", "", "batch year, e.g. 2023")
	cmd.Flags().StringVar(&sem, "sem", "", "semester (I..VIII, or 1st..8th in edge mode)")
	cmd.Flags().StringVar(&regNo, "reg-no", "", "registration number to start from")
	cmd.Flags().BoolVar(&edge, "edge", false, "look up the whole roster around reg-no")
	cmd.Flags().BoolVar(&asTable, "table", false, "print a table instead of JSON")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("reg-no")
	return cmd
}

func writeEntries(w io.Writer, entries []result.Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// renderTable prints one row per record and per error entry.
// Students with failed subjects are marked in the status column.
func renderTable(w io.Writer, entries []result.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Reg No", "Name", "College", "SGPA", "Status", "Remarks"})

	records, failing, errs := 0, 0, 0
	for _, e := range entries {
		switch e.Kind {
		case result.KindRecord:
			r := e.Result
			if r == nil {
				continue
			}
			status := "PASS"
			if r.Failed() {
				status = "FAIL"
				failing++
			}
			t.AppendRow(table.Row{r.RegistrationNo, r.StudentName, r.CollegeName, r.SGPA, status, r.Remarks})
			records++
		case result.KindError:
			t.AppendRow(table.Row{"-", "-", "-", "-", "ERROR", e.Error})
			errs++
		}
	}
	t.AppendFooter(table.Row{"", "", "", "", "Records",
		fmt.Sprintf("%d (%d failing, %d errors)", records, failing, errs)})
	t.Render()
}

func newPlanCmd() *cobra.Command {
	var extended, flat bool

	cmd := &cobra.Command{
		Use:   "plan <reg_no>",
		Short: "Print the registration numbers a lookup would visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var batches []planner.SubBatch
			if extended {
				b, err := planner.Extended(args[0])
				if err != nil {
					return err
				}
				batches = b
			} else {
				b, err := planner.Core(args[0])
				if err != nil {
					return err
				}
				batches = []planner.SubBatch{b}
			}

			out := cmd.OutOrStdout()
			if flat {
				for _, n := range planner.Flatten(batches) {
					fmt.Fprintln(out, n)
				}
				return nil
			}
			for _, b := range batches {
				fmt.Fprintln(out, strings.Join(b.Numbers(), " "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&extended, "extended", false, "plan the whole regular and lateral roster")
	cmd.Flags().BoolVar(&flat, "flat", false, "print one registration number per line")
	return cmd
}
