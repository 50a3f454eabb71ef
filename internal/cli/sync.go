package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/metashare/internal/ledger"
	"github.com/roach88/metashare/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Database string
	Chain    string
	All      bool

	// Reader overrides the chain dump (for testing).
	Reader ledger.Reader
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync [origin...]",
		Short: "Replay the ledger into the store",
		Long: `Replay confirmed blocks from each network's cursor to the tip, then
the mempool. With --all every registered network is synced in parallel.

Interrupting the sync saves the position reached; the next run resumes
from there.

Example:
  metashare sync --db ./metashare.db --chain ./dump.yaml memo
  metashare sync --db ./metashare.db --chain ./dump.yaml --all`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Chain, "chain", "", "path to a YAML chain dump (required)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "sync every registered network")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

// SyncResult reports one network's sync.
type SyncResult struct {
	Network string       `json:"network"`
	Session string       `json:"session"`
	Height  int64        `json:"height"`
	Block   string       `json:"block,omitempty"`
	Stats   syncer.Stats `json:"stats"`
}

// SyncResults is the result of the sync command.
type SyncResults []SyncResult

func (r SyncResults) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NETWORK\tHEIGHT\tBLOCKS\tTXS\tPENDING\tEVENTS\tFAILED")
	for _, s := range r {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n", s.Network, s.Height,
			s.Stats.Blocks, s.Stats.Txs, s.Stats.Pending, s.Stats.Events, s.Stats.Failed)
	}
	return tw.Flush()
}

func runSync(opts *SyncOptions, origins []string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	if opts.All == (len(origins) > 0) {
		return NewExitError(ExitCommandError, "name the networks to sync or pass --all")
	}

	reader := opts.Reader
	if reader == nil {
		if opts.Chain == "" {
			return NewExitError(ExitCommandError, "--chain is required")
		}
		chain, err := ledger.LoadDump(opts.Chain)
		if err != nil {
			return out.Fail(ExitCommandError, "failed to load chain", err)
		}
		reader = chain
		out.VerboseLog("chain loaded from %s", opts.Chain)
	}

	st, done, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer done()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if opts.All {
		nets, err := st.Networks(ctx)
		if err != nil {
			return out.Fail(ExitFailure, "failed to list networks", err)
		}
		for _, n := range nets {
			origins = append(origins, n.Origin)
		}
		if len(origins) == 0 {
			return out.Success(SyncResults{})
		}
	}

	sessions := make([]*syncer.Session, 0, len(origins))
	for _, origin := range origins {
		s, err := syncer.Open(ctx, st, reader, origin)
		if err != nil {
			return out.Fail(ExitCommandError, "failed to open session", err)
		}
		sessions = append(sessions, s)
	}

	runErr := syncer.RunAll(ctx, sessions)

	results := make(SyncResults, 0, len(sessions))
	for _, s := range sessions {
		c := s.Cursor()
		results = append(results, SyncResult{
			Network: s.Network().Origin,
			Session: s.ID,
			Height:  c.Height,
			Block:   c.Block,
			Stats:   s.Stats(),
		})
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			slog.Info("sync interrupted")
			return out.Success(results)
		}
		return out.Fail(ExitFailure, "sync aborted", runErr)
	}
	return out.Success(results)
}
