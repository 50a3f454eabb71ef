package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/metashare/internal/config"
	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/store"
)

// NetOptions holds flags for the net commands.
type NetOptions struct {
	*RootOptions
	Database string
}

// NewNetCommand creates the net command and its subcommands.
func NewNetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "net",
		Short: "Manage networks",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newNetAddCommand(opts))
	cmd.AddCommand(newNetListCommand(opts))
	return cmd
}

func newNetAddCommand(opts *NetOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <config.yaml>",
		Short: "Register a network from its configuration file",
		Long: `Register a network from its configuration file.

Registering an existing origin again replaces its stored configuration.
The name and site must not change.

Example:
  metashare net add --db ./metashare.db ./memo.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addNetwork(opts, args[0], cmd)
		},
	}
}

// NetworkView is the printable form of a registered network.
type NetworkView struct {
	ID      int64      `json:"id"`
	Origin  string     `json:"origin"`
	Name    string     `json:"name,omitempty"`
	Site    string     `json:"site,omitempty"`
	Created time.Time  `json:"created"`
	Cursor  CursorView `json:"cursor"`
	Last    *LastItem  `json:"last,omitempty"`
}

// CursorView is the printable form of a sync cursor.
type CursorView struct {
	Block  string `json:"block,omitempty"`
	Height int64  `json:"height"`
}

// LastItem is the most recent item a network produced.
type LastItem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func newNetworkView(n store.Network) NetworkView {
	return NetworkView{
		ID:      int64(n.ID),
		Origin:  n.Origin,
		Name:    n.Name,
		Site:    n.Site,
		Created: n.Created,
		Cursor:  CursorView{Block: n.Cursor.Block, Height: n.Cursor.Height},
	}
}

func (v NetworkView) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Network %s registered (id %d)\n", v.Origin, v.ID)
	return err
}

func addNetwork(opts *NetOptions, path string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	cfg, err := config.Load(path)
	if err != nil {
		return out.Fail(ExitCommandError, "invalid network config", err)
	}
	blob, err := cfg.Object()
	if err != nil {
		return out.Fail(ExitCommandError, "invalid network config", err)
	}

	detail := record.NewObject(record.P("time", record.T(time.Now())))
	if cfg.Name != "" {
		detail["name"] = record.String(cfg.Name)
	}
	if cfg.Site != "" {
		detail["site"] = record.String(cfg.Site)
	}

	st, done, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	id, err := st.OpenNetwork(ctx, cfg.Origin, detail, blob)
	if err != nil {
		return out.Fail(ExitFailure, "failed to register network", err)
	}
	n, err := st.Network(ctx, id)
	if err != nil {
		return out.Fail(ExitFailure, "failed to read network", err)
	}
	slog.Info("network registered", "origin", n.Origin, "id", n.ID)
	return out.Success(newNetworkView(n))
}

func newNetListCommand(opts *NetOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List networks with their sync position",
		Long: `List registered networks with their sync cursor and the last item
each one produced.

Example:
  metashare net list --db ./metashare.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listNetworks(opts, cmd)
		},
	}
}

// NetworkList is the result of net list.
type NetworkList []NetworkView

func (l NetworkList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No networks registered")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORIGIN\tNAME\tHEIGHT\tBLOCK\tLAST")
	for _, v := range l {
		last := "-"
		if v.Last != nil {
			last = v.Last.Type + " " + v.Last.ID
		}
		block := v.Cursor.Block
		if block == "" {
			block = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", v.Origin, v.Name, v.Cursor.Height, block, last)
	}
	return tw.Flush()
}

func listNetworks(opts *NetOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	st, done, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	nets, err := st.Networks(ctx)
	if err != nil {
		return out.Fail(ExitFailure, "failed to list networks", err)
	}

	list := NetworkList{}
	for _, n := range nets {
		v := newNetworkView(n)
		last, err := st.GetLastFrom(ctx, n.ID)
		switch {
		case err == nil:
			v.Last = &LastItem{Type: string(last.Type), ID: last.LocalID}
		case !errors.Is(err, store.ErrNotFound):
			return out.Fail(ExitFailure, "failed to read last item", err)
		}
		list = append(list, v)
	}
	return out.Success(list)
}
