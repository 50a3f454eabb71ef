package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
)

// Network is a data source and its sync state.
type Network struct {
	ID      NetworkID
	Origin  string
	Name    string
	Site    string
	Created time.Time

	// Config is the configuration blob stored with the network.
	Config record.Object

	// Cursor is the resumption point of the last sync.
	Cursor Cursor
}

// Cursor records how far a network has been synced.
type Cursor struct {
	// Block is the hash of the last fully processed block.
	Block string

	// Height is the height of Block.
	Height int64

	// Resume, when set, marks a block that was interrupted part way.
	// Transactions before Index in that block are done.
	Resume *Resume
}

// Resume is an in-block resumption marker.
type Resume struct {
	Block string
	Index int
}

// IsZero reports whether nothing has been synced.
func (c Cursor) IsZero() bool {
	return c.Block == "" && c.Resume == nil
}

func (c Cursor) object() record.Object {
	obj := record.NewObject(record.P("height", record.Int(c.Height)))
	if c.Block != "" {
		obj["block"] = record.String(c.Block)
	}
	if c.Resume != nil {
		obj["resume"] = record.NewObject(
			record.P("block", record.String(c.Resume.Block)),
			record.P("index", record.Int(c.Resume.Index)),
		)
	}
	return obj
}

func cursorFromObject(v record.Value) Cursor {
	obj, ok := v.(record.Object)
	if !ok {
		return Cursor{}
	}
	var c Cursor
	c.Block, _ = obj.Str("block")
	if h, ok := obj["height"].(record.Int); ok {
		c.Height = int64(h)
	}
	if r, ok := obj["resume"].(record.Object); ok {
		block, _ := r.Str("block")
		idx, _ := r["index"].(record.Int)
		c.Resume = &Resume{Block: block, Index: int(idx)}
	}
	return c
}

// Custom blob keys of a network item.
const (
	custCursor = "cursor"
	custConfig = "config"
)

// OpenNetwork registers the network with the given origin, or returns it
// if it exists. A network is an item owned by itself whose local id is the
// origin.
//
// detail holds the network fields (time, name, site). Reopening with a
// different name or site fails with CONFLICTING_DUPLICATE; the time of
// the first registration is kept. config, when non-nil, replaces the
// stored configuration blob.
func (s *Store) OpenNetwork(ctx context.Context, origin string, detail record.Object, config record.Object) (NetworkID, error) {
	e := schema.MustLookup(schema.Network)
	if origin == "" {
		return 0, violation(schema.Network, 0, "", "id", "origin is required")
	}

	obj := detail.Clone()
	obj["id"] = record.String(origin)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("open network: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Networks carry no references, so no owning network is needed to
	// encode them.
	values, err := encodeFields(ctx, tx, e, 0, origin, obj)
	if err != nil {
		return 0, err
	}

	var (
		id   int64
		cust sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, cust FROM items WHERE type = ? AND local_id = ? AND net = id
	`, string(schema.Network), origin).Scan(&id, &cust)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		var custObj record.Object
		if config != nil {
			custObj = record.Object{custConfig: config}
		}
		item, err := insertItem(ctx, tx, 0, schema.Network, origin, 0, custObj)
		if err != nil {
			return 0, fmt.Errorf("open network: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE items SET net = id, content = id WHERE id = ?`, int64(item)); err != nil {
			return 0, fmt.Errorf("open network: %w", err)
		}
		if err := insertDetail(ctx, tx, e, ContentID(item), values); err != nil {
			return 0, fmt.Errorf("open network: %w", err)
		}
		id = int64(item)

	case err != nil:
		return 0, fmt.Errorf("open network: %w", err)

	default:
		stored, err := loadDetail(ctx, tx, e, ContentID(id))
		if err != nil {
			return 0, fmt.Errorf("open network: %w", err)
		}
		for i, f := range e.Fields {
			if f.Name == "time" {
				continue
			}
			if !sameColumn(values[i], stored[i]) {
				return 0, &IntegrityError{
					Code:    ErrCodeConflictingDuplicate,
					Type:    schema.Network,
					Network: NetworkID(id),
					ID:      origin,
					Field:   f.Name,
					Message: "network already registered with a different value",
				}
			}
		}
		if config != nil {
			current, err := unmarshalCust(cust.String)
			if err != nil {
				return 0, fmt.Errorf("open network: %w", err)
			}
			current[custConfig] = config
			if err := setCust(ctx, tx, ItemID(id), current); err != nil {
				return 0, fmt.Errorf("open network: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("open network: commit: %w", err)
	}
	return NetworkID(id), nil
}

// Network returns the network with the given id.
func (s *Store) Network(ctx context.Context, id NetworkID) (Network, error) {
	return s.scanNetwork(s.db.QueryRowContext(ctx, networkQuery+` AND i.id = ?`, int64(id)))
}

// NetworkByOrigin returns the network registered under origin.
func (s *Store) NetworkByOrigin(ctx context.Context, origin string) (Network, error) {
	return s.scanNetwork(s.db.QueryRowContext(ctx, networkQuery+` AND i.local_id = ?`, origin))
}

// Networks returns every registered network in registration order.
func (s *Store) Networks(ctx context.Context) ([]Network, error) {
	rows, err := s.db.QueryContext(ctx, networkQuery+` ORDER BY i.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query networks: %w", err)
	}
	defer rows.Close()

	nets := []Network{}
	for rows.Next() {
		n, err := s.scanNetwork(rows)
		if err != nil {
			return nil, err
		}
		nets = append(nets, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate networks: %w", err)
	}
	return nets, nil
}

// SaveCursor stores the sync cursor in the network's custom blob.
func (s *Store) SaveCursor(ctx context.Context, id NetworkID, c Cursor) error {
	return s.updateCust(ctx, ItemID(id), func(cust record.Object) record.Object {
		cust[custCursor] = c.object()
		return cust
	})
}

const networkQuery = `
	SELECT i.id, i.local_id, i.cust, d.time, d.name, d.site
	FROM items i
	JOIN nets d ON d.id = i.content
	WHERE i.type = 'net' AND i.net = i.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanNetwork(row rowScanner) (Network, error) {
	var (
		id         int64
		origin     string
		cust       sql.NullString
		created    int64
		name, site sql.NullString
	)
	err := row.Scan(&id, &origin, &cust, &created, &name, &site)
	if errors.Is(err, sql.ErrNoRows) {
		return Network{}, fmt.Errorf("network: %w", ErrNotFound)
	}
	if err != nil {
		return Network{}, fmt.Errorf("scan network: %w", err)
	}

	n := Network{
		ID:      NetworkID(id),
		Origin:  origin,
		Name:    name.String,
		Site:    site.String,
		Created: time.UnixMilli(created).UTC(),
	}
	blob, err := unmarshalCust(cust.String)
	if err != nil {
		return Network{}, fmt.Errorf("network %q: %w", origin, err)
	}
	if cfg, ok := blob[custConfig].(record.Object); ok {
		n.Config = cfg
	}
	n.Cursor = cursorFromObject(blob[custCursor])
	return n, nil
}
