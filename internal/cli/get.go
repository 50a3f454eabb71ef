package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
	"github.com/roach88/metashare/internal/store"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Database string
	Network  string
	ID       string
	Where    []string
	Limit    int
	Desc     bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <type>",
		Short: "List items of a type as seen from a network",
		Long: fmt.Sprintf(`List items of a type as seen from a network.

References are shown as the network's local ids. --where compares a field
for equality. Values take the field's kind: integers and numbers as written,
times as RFC 3339, references by local id, and references to any type
(opin what and link) as type:local-id.

Types: %s

Example:
  metashare get post --db ./metashare.db --network memo --where user=1Alice...
  metashare get opin --db ./metashare.db --network memo --where how=like --where value=500
  metashare get opin --db ./metashare.db --network memo --limit 10 --desc`, typeNames()),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, schema.Type(args[0]), cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Network, "network", "", "origin of the network to read as (required)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "local id to match")
	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "field=value to match (repeatable)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of items (0 = no limit)")
	cmd.Flags().BoolVar(&opts.Desc, "desc", false, "newest first")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("network")

	return cmd
}

func typeNames() string {
	var names []string
	for _, t := range schema.Types() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func runGet(opts *GetOptions, typ schema.Type, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	e, err := schema.Lookup(typ)
	if err != nil {
		return out.Fail(ExitCommandError, "unknown type", err)
	}
	where, err := parseWhere(e, opts.Where)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --where", err)
	}

	st, done, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer done()

	ctx := cmd.Context()
	net, err := st.NetworkByOrigin(ctx, opts.Network)
	if err != nil {
		return out.Fail(ExitCommandError, "unknown network", err)
	}

	recs, err := st.Get(ctx, typ, net.ID, store.Filter{
		ID:    opts.ID,
		Where: where,
		Limit: opts.Limit,
		Desc:  opts.Desc,
	})
	if err != nil {
		return out.Fail(ExitFailure, "query failed", err)
	}

	list := make(ItemList, 0, len(recs))
	for _, rec := range recs {
		list = append(list, newItemView(rec))
	}
	return out.Success(list)
}

// parseWhere turns field=value pairs into a filter object, converting
// each value to the kind of its field.
func parseWhere(e *schema.Entity, pairs []string) (record.Object, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	where := record.Object{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not field=value", p)
		}
		field, ok := e.Field(k)
		if !ok {
			return nil, fmt.Errorf("%s has no field %q", e.Type, k)
		}
		val, err := whereValue(field, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		where[k] = val
	}
	return where, nil
}

func whereValue(f schema.Field, v string) (record.Value, error) {
	switch f.Kind {
	case schema.KindInt:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", v)
		}
		return record.Int(n), nil
	case schema.KindFloat:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", v)
		}
		return record.Float(n), nil
	case schema.KindTime:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("%q is not an RFC 3339 time", v)
		}
		return record.T(t), nil
	case schema.KindRef:
		if f.Target != schema.Any {
			return record.String(v), nil
		}
		typ, id, ok := strings.Cut(v, ":")
		if !ok || typ == "" || id == "" {
			return nil, fmt.Errorf("%q is not type:local-id", v)
		}
		return record.Ref{Type: typ, ID: id}, nil
	}
	return record.String(v), nil
}
