package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
)

// Get returns the resolved items of typ visible under net that match f,
// ordered by item id (creation order). Placeholders are never returned.
//
// Reference fields are projected into net's local ids. A reference whose
// target has no item under net is omitted from Fields.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Get(ctx context.Context, typ schema.Type, net NetworkID, f Filter) ([]Record, error) {
	e, err := schema.Lookup(typ)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	q, err := buildGet(e, net, f)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", typ, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, e)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", typ, err)
	}
	return records, nil
}

// GetOne returns the single item of typ under net with the given local id.
func (s *Store) GetOne(ctx context.Context, typ schema.Type, net NetworkID, localID string) (Record, error) {
	recs, err := s.Get(ctx, typ, net, Filter{ID: localID})
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, fmt.Errorf("%s %q: %w", typ, localID, ErrNotFound)
	}
	return recs[0], nil
}

// Find looks up the item of typ under net whose local id is one of
// candidates without creating anything. A resolved match is preferred.
// Returns ErrNotFound if no candidate exists.
func (s *Store) Find(ctx context.Context, typ schema.Type, net NetworkID, candidates ...string) (Resolution, error) {
	if _, err := schema.Lookup(typ); err != nil {
		return Resolution{}, fmt.Errorf("find: %w", err)
	}
	res, found, err := matchCandidates(ctx, s.db, net, typ, candidates)
	if err != nil {
		return Resolution{}, fmt.Errorf("find: %w", err)
	}
	if !found {
		return Resolution{}, fmt.Errorf("%s %v: %w", typ, candidates, ErrNotFound)
	}
	return res, nil
}

// GetLastFrom returns the most recently created resolved item owned by
// net, other than the network's own item.
func (s *Store) GetLastFrom(ctx context.Context, net NetworkID) (Item, error) {
	var (
		id      int64
		typ     string
		localID string
		content int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, local_id, content
		FROM items
		WHERE net = ? AND content IS NOT NULL AND id != net
		ORDER BY id DESC
		LIMIT 1
	`, int64(net)).Scan(&id, &typ, &localID, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("last item of network %d: %w", net, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("last item of network %d: %w", net, err)
	}
	return Item{
		ID:      ItemID(id),
		Network: net,
		Type:    schema.Type(typ),
		LocalID: localID,
		Content: ContentID(content),
	}, nil
}

// Count returns the number of items of typ under net, placeholders
// included.
func (s *Store) Count(ctx context.Context, typ schema.Type, net NetworkID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM items WHERE net = ? AND type = ?
	`, int64(net), string(typ)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", typ, err)
	}
	return n, nil
}

type query struct {
	sql  string
	args []any
}

// buildGet assembles the projection query for one entity type. Each
// reference column joins back to items under the requesting network:
//
//	LEFT JOIN items rN ON rN.net = i.net AND COALESCE(rN.content, rN.id) = d.col
//
// COALESCE covers placeholders, whose id stands in for content not yet
// known.
func buildGet(e *schema.Entity, net NetworkID, f Filter) (query, error) {
	var (
		sel   []string
		joins []string
		where []string
		args  []any
	)

	sel = append(sel, "i.id", "i.local_id", "i.content", "i.cust", "o.local_id", "onet.local_id")
	for _, name := range e.Columns() {
		sel = append(sel, "d."+quoteIdent(name))
	}

	refAlias := make(map[string]string, len(e.Fields))
	for i, rf := range e.Refs() {
		alias := fmt.Sprintf("r%d", i)
		refAlias[rf.Name] = alias
		sel = append(sel, alias+".local_id", alias+".type")

		join := fmt.Sprintf("LEFT JOIN items %[1]s ON %[1]s.net = i.net AND COALESCE(%[1]s.content, %[1]s.id) = d.%[2]s",
			alias, quoteIdent(rf.Name))
		if rf.Target != schema.Any {
			join += fmt.Sprintf(" AND %s.type = ?", alias)
			args = append(args, string(rf.Target))
		}
		joins = append(joins, join)
	}

	where = append(where, "i.net = ?", "i.type = ?")
	args = append(args, int64(net), string(e.Type))

	if f.Item != 0 {
		where = append(where, "i.id = ?")
		args = append(args, int64(f.Item))
	}
	if f.Content != 0 {
		where = append(where, "i.content = ?")
		args = append(args, int64(f.Content))
	}
	if f.ID != "" {
		where = append(where, "i.local_id = ?")
		args = append(args, f.ID)
	}

	for _, name := range f.Where.SortedKeys() {
		v := f.Where[name]
		field, ok := e.Field(name)
		if !ok {
			return query{}, violation(e.Type, net, "", name, "filter on undeclared field")
		}

		if field.IsRef() {
			alias := refAlias[name]
			switch ref := v.(type) {
			case record.Null:
				where = append(where, "d."+quoteIdent(name)+" IS NULL")
			case record.String:
				where = append(where, alias+".local_id = ?")
				args = append(args, string(ref))
			case record.Ref:
				where = append(where, alias+".local_id = ?", alias+".type = ?")
				args = append(args, ref.ID, ref.Type)
			default:
				return query{}, violation(e.Type, net, "", name, fmt.Sprintf("%T is not a reference", v))
			}
			continue
		}

		enc, err := encodeScalar(field, v)
		if err != nil {
			return query{}, violation(e.Type, net, "", name, err.Error())
		}
		if enc == nil {
			where = append(where, "d."+quoteIdent(name)+" IS NULL")
			continue
		}
		where = append(where, "d."+quoteIdent(name)+" = ?")
		args = append(args, enc)
	}

	order := "ASC"
	if f.Desc {
		order = "DESC"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s\nFROM items i\n", strings.Join(sel, ", "))
	fmt.Fprintf(&b, "JOIN %s d ON d.id = i.content\n", quoteIdent(e.Table))
	b.WriteString("JOIN items o ON o.id = i.content\n")
	b.WriteString("JOIN items onet ON onet.id = o.net\n")
	for _, j := range joins {
		b.WriteString(j + "\n")
	}
	fmt.Fprintf(&b, "WHERE %s\nORDER BY i.id %s", strings.Join(where, " AND "), order)
	if f.Limit > 0 {
		b.WriteString("\nLIMIT ?")
		args = append(args, f.Limit)
	}

	return query{sql: b.String(), args: args}, nil
}

func scanRecord(rows *sql.Rows, e *schema.Entity) (Record, error) {
	var (
		id, content         int64
		localID             string
		cust                sql.NullString
		originID, originNet string
	)
	refs := e.Refs()
	raw := make([]any, len(e.Fields))
	refIDs := make([]sql.NullString, len(refs))
	refTypes := make([]sql.NullString, len(refs))

	dest := []any{&id, &localID, &content, &cust, &originID, &originNet}
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	for i := range refs {
		dest = append(dest, &refIDs[i], &refTypes[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return Record{}, fmt.Errorf("scan %s: %w", e.Type, err)
	}

	fields := record.Object{"id": record.String(localID)}
	refIndex := 0
	for i, f := range e.Fields {
		if f.IsRef() {
			rid, rtype := refIDs[refIndex], refTypes[refIndex]
			refIndex++
			if raw[i] == nil || !rid.Valid {
				continue
			}
			if f.Target == schema.Any {
				fields[f.Name] = record.Ref{Type: rtype.String, ID: rid.String}
			} else {
				fields[f.Name] = record.String(rid.String)
			}
			continue
		}

		v, err := decodeScalar(f, raw[i])
		if err != nil {
			return Record{}, fmt.Errorf("scan %s: %w", e.Type, err)
		}
		if v != nil {
			fields[f.Name] = v
		}
	}

	if cust.Valid {
		c, err := unmarshalCust(cust.String)
		if err != nil {
			return Record{}, fmt.Errorf("scan %s %q: %w", e.Type, localID, err)
		}
		fields["cust"] = c
	}

	return Record{
		Item:    ItemID(id),
		Content: ContentID(content),
		Type:    e.Type,
		Fields:  fields,
		Origin:  Origin{Network: originNet, ID: originID},
	}, nil
}
