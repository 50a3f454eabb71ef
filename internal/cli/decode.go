package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/metashare/internal/config"
	"github.com/roach88/metashare/internal/decode"
	"github.com/roach88/metashare/internal/ledger"
	"github.com/roach88/metashare/internal/record"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Chain  string
	TxID   string
	Config string
	At     string
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode [raw-tx-hex]",
		Short: "Decode one transaction into a scratch store",
		Long: `Decode one transaction and print the items it produces.

The transaction is given as raw hex, or looked up by id in a chain dump.
Decoding happens in a throwaway store, so references to items outside
the transaction show up as placeholders.

Example:
  metashare decode 0100000001...
  metashare decode --chain ./dump.yaml --tx 5ad9...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Chain, "chain", "", "path to a YAML chain dump")
	cmd.Flags().StringVar(&opts.TxID, "tx", "", "transaction id to look up in --chain")
	cmd.Flags().StringVar(&opts.Config, "config", "", "network config file (default: built-in defaults)")
	cmd.Flags().StringVar(&opts.At, "at", "", "item time as RFC 3339 (default: now)")

	return cmd
}

// DecodeResult is the result of the decode command.
type DecodeResult struct {
	decode.Result
	Items ItemList `json:"items"`
}

func (r DecodeResult) WriteText(w io.Writer) error {
	switch {
	case r.Skip != "":
		_, err := fmt.Fprintf(w, "Transaction %s skipped: %s\n", r.TxID, r.Skip)
		return err
	case len(r.Events) == 0:
		_, err := fmt.Fprintf(w, "Transaction %s produced nothing\n", r.TxID)
		return err
	}
	fmt.Fprintf(w, "Transaction %s by %s:\n", r.TxID, r.Author)
	return r.Items.WriteText(w)
}

func runDecode(opts *DecodeOptions, args []string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Default("scratch")
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return out.Fail(ExitCommandError, "invalid network config", err)
		}
	}

	at := time.Now().UTC()
	if opts.At != "" {
		var err error
		if at, err = time.Parse(time.RFC3339, opts.At); err != nil {
			return WrapExitError(ExitCommandError, "invalid --at", err)
		}
	}

	tx, err := loadTx(ctx, opts, args)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to load transaction", err)
	}

	dir, err := os.MkdirTemp("", "metashare-decode-")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create scratch store", err)
	}
	defer os.RemoveAll(dir)

	st, done, err := openStore(filepath.Join(dir, "scratch.db"))
	if err != nil {
		return err
	}
	defer done()

	blob, err := cfg.Object()
	if err != nil {
		return out.Fail(ExitCommandError, "invalid network config", err)
	}
	net, err := st.OpenNetwork(ctx, cfg.Origin, record.NewObject(record.P("time", record.T(at))), blob)
	if err != nil {
		return out.Fail(ExitFailure, "failed to register network", err)
	}
	params, err := ledger.Params(cfg.Chain)
	if err != nil {
		return out.Fail(ExitCommandError, "invalid network config", err)
	}

	dec := decode.New(st, net,
		decode.WithProtocol(decode.V1().WithReserved(byte(cfg.ReservedKind))),
		decode.WithParams(params),
		decode.WithCurrency(cfg.CurrencyUnit, cfg.UnitsPerCurrency),
		decode.WithMaxMessageSize(cfg.MaxMessageSize),
	)
	res, err := dec.Decode(ctx, tx, at)
	if err != nil {
		return out.Fail(ExitFailure, "decode failed", err)
	}

	result := DecodeResult{Result: res, Items: ItemList{}}
	for _, ev := range res.Events {
		rec, err := st.GetOne(ctx, ev.Type, net, ev.ID)
		if err != nil {
			return out.Fail(ExitFailure, "failed to read decoded item", err)
		}
		result.Items = append(result.Items, newItemView(rec))
	}
	return out.Success(result)
}

func loadTx(ctx context.Context, opts *DecodeOptions, args []string) (*ledger.Tx, error) {
	switch {
	case len(args) == 1 && opts.TxID == "":
		return ledger.ParseTxHex(args[0])
	case len(args) == 0 && opts.TxID != "" && opts.Chain != "":
		chain, err := ledger.LoadDump(opts.Chain)
		if err != nil {
			return nil, err
		}
		return chain.Tx(ctx, opts.TxID)
	}
	return nil, errors.New("pass raw hex, or --chain with --tx")
}
