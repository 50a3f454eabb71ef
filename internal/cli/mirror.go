package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
	"github.com/roach88/metashare/internal/store"
)

// MirrorOptions holds flags for the mirror command.
type MirrorOptions struct {
	*RootOptions
	Database string
	To       string
	ID       string
}

// NewMirrorCommand creates the mirror command.
func NewMirrorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MirrorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mirror <type> <content-id>",
		Short: "Make existing content visible under another network",
		Long: `Make existing content visible under another network with its own
local id. The content is shared, not copied.

Example:
  metashare mirror post 42 --db ./metashare.db --to archive --id p-42`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.To, "to", "", "origin of the network to mirror into (required)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "local id under the target network (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

// MirrorResult is the result of the mirror command.
type MirrorResult struct {
	Item ItemView `json:"item"`
}

func (r MirrorResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Mirrored as item %d:\n", r.Item.Item)
	return r.Item.writeText(w)
}

func runMirror(opts *MirrorOptions, args []string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	typ := schema.Type(args[0])
	if _, err := schema.Lookup(typ); err != nil {
		return out.Fail(ExitCommandError, "unknown type", err)
	}
	content, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || content <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid content id %q", args[1]))
	}

	st, done, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	net, err := st.NetworkByOrigin(ctx, opts.To)
	if err != nil {
		return out.Fail(ExitCommandError, "unknown network", err)
	}

	item, err := st.Mirror(ctx, typ, store.ContentID(content), net.ID,
		record.NewObject(record.P("id", record.String(opts.ID))))
	if err != nil {
		return out.Fail(ExitFailure, "mirror failed", err)
	}
	slog.Info("content mirrored", "type", typ, "content", content, "network", opts.To, "item", item)

	recs, err := st.Get(ctx, typ, net.ID, store.Filter{Item: item})
	if err != nil {
		return out.Fail(ExitFailure, "failed to read mirrored item", err)
	}
	if len(recs) == 0 {
		return out.Fail(ExitFailure, "failed to read mirrored item", fmt.Errorf("item %d: %w", item, store.ErrNotFound))
	}
	return out.Success(MirrorResult{Item: newItemView(recs[0])})
}
