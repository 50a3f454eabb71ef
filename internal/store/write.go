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

// Put creates or resolves the item (net, typ, obj["id"]) with the fields
// in obj and returns its content id.
//
//   - No item yet: inserts the item and its Detail row sharing one id.
//   - Placeholder: fills the Detail row under the placeholder's id, so
//     references already pointing at it see the content.
//   - Resolved: every field must equal the stored content, else the put
//     fails with CONFLICTING_DUPLICATE. Only "cust" is updated.
//
// Reference fields carry local ids of items under net (a record.Ref for
// fields targeting schema.Any). A reference that names no item fails the
// whole put with MISSING_REFERENCE.
func (s *Store) Put(ctx context.Context, typ schema.Type, net NetworkID, obj record.Object) (ContentID, error) {
	e, err := schema.Lookup(typ)
	if err != nil {
		return 0, fmt.Errorf("put: %w", err)
	}

	localID, ok := obj.Str("id")
	if !ok || localID == "" {
		return 0, violation(typ, net, localID, "id", "id is required")
	}
	cust, hasCust, err := custFrom(obj)
	if err != nil {
		return 0, violation(typ, net, localID, "cust", err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("put: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := requireNetwork(ctx, tx, net); err != nil {
		return 0, fmt.Errorf("put: %w", err)
	}

	values, err := encodeFields(ctx, tx, e, net, localID, obj)
	if err != nil {
		return 0, err
	}

	existing, err := findItem(ctx, tx, net, typ, localID)
	if err != nil {
		return 0, fmt.Errorf("put: %w", err)
	}

	var content ContentID
	switch {
	case existing == nil:
		id, err := insertItem(ctx, tx, net, typ, localID, 0, cust)
		if err != nil {
			return 0, fmt.Errorf("put: %w", err)
		}
		content = ContentID(id)
		if err := insertDetail(ctx, tx, e, content, values); err != nil {
			return 0, fmt.Errorf("put: %w", err)
		}
		if err := setContent(ctx, tx, id, content); err != nil {
			return 0, fmt.Errorf("put: %w", err)
		}

	case existing.Content == 0:
		content = ContentID(existing.ID)
		if err := insertDetail(ctx, tx, e, content, values); err != nil {
			return 0, fmt.Errorf("put: %w", err)
		}
		if err := setContent(ctx, tx, existing.ID, content); err != nil {
			return 0, fmt.Errorf("put: %w", err)
		}
		if hasCust {
			if err := setCust(ctx, tx, existing.ID, cust); err != nil {
				return 0, fmt.Errorf("put: %w", err)
			}
		}

	default:
		content = existing.Content
		stored, err := loadDetail(ctx, tx, e, content)
		if err != nil {
			return 0, fmt.Errorf("put: %w", err)
		}
		for i, f := range e.Fields {
			if !sameColumn(values[i], stored[i]) {
				return 0, &IntegrityError{
					Code:    ErrCodeConflictingDuplicate,
					Type:    typ,
					Network: net,
					ID:      localID,
					Field:   f.Name,
					Message: "field differs from the stored content",
				}
			}
		}
		if hasCust {
			if err := setCust(ctx, tx, existing.ID, cust); err != nil {
				return 0, fmt.Errorf("put: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("put: commit: %w", err)
	}
	return content, nil
}

// ResolveOrCreate returns the item of typ under net whose local id is one
// of candidates, preferring a resolved item and then candidate order. If
// none exists it creates a placeholder keyed on the first candidate.
// Calling it again with the same candidates returns the same item.
func (s *Store) ResolveOrCreate(ctx context.Context, typ schema.Type, net NetworkID, candidates ...string) (Resolution, error) {
	if _, err := schema.Lookup(typ); err != nil {
		return Resolution{}, fmt.Errorf("resolve: %w", err)
	}
	if len(candidates) == 0 || candidates[0] == "" {
		return Resolution{}, violation(typ, net, "", "id", "at least one candidate id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := requireNetwork(ctx, tx, net); err != nil {
		return Resolution{}, fmt.Errorf("resolve: %w", err)
	}

	res, found, err := matchCandidates(ctx, tx, net, typ, candidates)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve: %w", err)
	}
	if found {
		return res, nil
	}

	id, err := insertItem(ctx, tx, net, typ, candidates[0], 0, nil)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Resolution{}, fmt.Errorf("resolve: commit: %w", err)
	}
	return Resolution{Item: id, LocalID: candidates[0], Created: true}, nil
}

// Mirror makes the content from visible under network to as the local id
// obj["id"], without copying or touching the Detail row. obj may carry
// only "id" and "cust".
//
// Mirroring the same content under the same local id again only updates
// the custom blob. A local id or content already taken under to fails with
// ALIAS_CONFLICT.
func (s *Store) Mirror(ctx context.Context, typ schema.Type, from ContentID, to NetworkID, obj record.Object) (ItemID, error) {
	if _, err := schema.Lookup(typ); err != nil {
		return 0, fmt.Errorf("mirror: %w", err)
	}

	localID, ok := obj.Str("id")
	if !ok || localID == "" {
		return 0, violation(typ, to, localID, "id", "id is required")
	}
	for k := range obj {
		if k != "id" && k != "cust" {
			return 0, violation(typ, to, localID, k, "a mirror carries no detail fields")
		}
	}
	cust, hasCust, err := custFrom(obj)
	if err != nil {
		return 0, violation(typ, to, localID, "cust", err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mirror: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := requireNetwork(ctx, tx, to); err != nil {
		return 0, fmt.Errorf("mirror: %w", err)
	}

	var originType string
	err = tx.QueryRowContext(ctx, `
		SELECT type FROM items WHERE id = ? AND content = id
	`, int64(from)).Scan(&originType)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && schema.Type(originType) != typ) {
		return 0, fmt.Errorf("mirror: %s content %d: %w", typ, from, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("mirror: %w", err)
	}

	existing, err := findItem(ctx, tx, to, typ, localID)
	if err != nil {
		return 0, fmt.Errorf("mirror: %w", err)
	}
	if existing != nil {
		if existing.Content != from {
			return 0, &IntegrityError{
				Code:    ErrCodeAliasConflict,
				Type:    typ,
				Network: to,
				ID:      localID,
				Message: "local id already names other content",
			}
		}
		if hasCust {
			if err := setCust(ctx, tx, existing.ID, cust); err != nil {
				return 0, fmt.Errorf("mirror: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("mirror: commit: %w", err)
		}
		return existing.ID, nil
	}

	var taken string
	err = tx.QueryRowContext(ctx, `
		SELECT local_id FROM items WHERE net = ? AND content = ?
	`, int64(to), int64(from)).Scan(&taken)
	if err == nil {
		return 0, &IntegrityError{
			Code:    ErrCodeAliasConflict,
			Type:    typ,
			Network: to,
			ID:      localID,
			Message: fmt.Sprintf("content is already visible as %q", taken),
		}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("mirror: %w", err)
	}

	id, err := insertItem(ctx, tx, to, typ, localID, from, cust)
	if err != nil {
		return 0, fmt.Errorf("mirror: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mirror: commit: %w", err)
	}
	return id, nil
}

// SetCust replaces the custom blob of an item.
func (s *Store) SetCust(ctx context.Context, item ItemID, cust record.Object) error {
	return s.updateCust(ctx, item, func(record.Object) record.Object { return cust })
}

// updateCust applies fn to the stored custom blob in one transaction.
func (s *Store) updateCust(ctx context.Context, item ItemID, fn func(record.Object) record.Object) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update cust: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var raw sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT cust FROM items WHERE id = ?`, int64(item)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update cust: item %d: %w", item, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update cust: %w", err)
	}
	current, err := unmarshalCust(raw.String)
	if err != nil {
		return fmt.Errorf("update cust: %w", err)
	}
	if err := setCust(ctx, tx, item, fn(current)); err != nil {
		return fmt.Errorf("update cust: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update cust: commit: %w", err)
	}
	return nil
}

// encodeFields validates obj against e and returns one column value per
// declared field, with references translated to content ids.
func encodeFields(ctx context.Context, tx execer, e *schema.Entity, net NetworkID, localID string, obj record.Object) ([]any, error) {
	for k := range obj {
		if k == "id" || k == "cust" {
			continue
		}
		if _, ok := e.Field(k); !ok {
			return nil, violation(e.Type, net, localID, k, "undeclared field")
		}
	}

	values := make([]any, len(e.Fields))
	for i, f := range e.Fields {
		v := obj[f.Name]
		if !obj.Has(f.Name) {
			if !f.Optional {
				return nil, violation(e.Type, net, localID, f.Name, "required field is missing")
			}
			continue
		}

		if f.IsRef() {
			ref, err := resolveRef(ctx, tx, net, f, v)
			if err != nil {
				var ie *IntegrityError
				if errors.As(err, &ie) {
					ie.Type, ie.Network, ie.ID = e.Type, net, localID
				}
				return nil, err
			}
			values[i] = ref
			continue
		}

		enc, err := encodeScalar(f, v)
		if err != nil {
			return nil, violation(e.Type, net, localID, f.Name, err.Error())
		}
		values[i] = enc
	}
	return values, nil
}

// resolveRef returns the content id (or placeholder id) of the item a
// reference field names.
func resolveRef(ctx context.Context, tx execer, net NetworkID, f schema.Field, v record.Value) (int64, error) {
	var target schema.Type
	var localID string

	switch ref := v.(type) {
	case record.String:
		if f.Target == schema.Any {
			return 0, &IntegrityError{Code: ErrCodeSchemaViolation, Field: f.Name, Message: "reference to any type needs a record.Ref"}
		}
		target, localID = f.Target, string(ref)
	case record.Ref:
		if f.Target != schema.Any && schema.Type(ref.Type) != f.Target {
			return 0, &IntegrityError{Code: ErrCodeSchemaViolation, Field: f.Name, Message: fmt.Sprintf("reference must point at %s, not %s", f.Target, ref.Type)}
		}
		if _, err := schema.Lookup(schema.Type(ref.Type)); err != nil {
			return 0, &IntegrityError{Code: ErrCodeSchemaViolation, Field: f.Name, Message: err.Error()}
		}
		target, localID = schema.Type(ref.Type), ref.ID
	default:
		return 0, &IntegrityError{Code: ErrCodeSchemaViolation, Field: f.Name, Message: fmt.Sprintf("%T is not a reference", v)}
	}

	item, err := findItem(ctx, tx, net, target, localID)
	if err != nil {
		return 0, err
	}
	if item == nil {
		return 0, &IntegrityError{
			Code:    ErrCodeMissingReference,
			Field:   f.Name,
			Message: fmt.Sprintf("no %s %q under this network", target, localID),
		}
	}
	if item.Content != 0 {
		return int64(item.Content), nil
	}
	return int64(item.ID), nil
}

// findItem returns the item (net, typ, localID), or nil.
func findItem(ctx context.Context, tx execer, net NetworkID, typ schema.Type, localID string) (*Item, error) {
	var (
		id      int64
		content sql.NullInt64
	)
	err := tx.QueryRowContext(ctx, `
		SELECT id, content FROM items WHERE net = ? AND type = ? AND local_id = ?
	`, int64(net), string(typ), localID).Scan(&id, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %q: %w", typ, localID, err)
	}
	return &Item{
		ID:      ItemID(id),
		Network: net,
		Type:    typ,
		LocalID: localID,
		Content: ContentID(content.Int64),
	}, nil
}

// matchCandidates finds the best existing item among candidate local ids.
func matchCandidates(ctx context.Context, tx execer, net NetworkID, typ schema.Type, candidates []string) (Resolution, bool, error) {
	var first *Item
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true

		item, err := findItem(ctx, tx, net, typ, c)
		if err != nil {
			return Resolution{}, false, err
		}
		if item == nil {
			continue
		}
		if item.Content != 0 {
			return Resolution{Item: item.ID, LocalID: c, Content: item.Content}, true, nil
		}
		if first == nil {
			first = item
		}
	}
	if first == nil {
		return Resolution{}, false, nil
	}
	return Resolution{Item: first.ID, LocalID: first.LocalID}, true, nil
}

func requireNetwork(ctx context.Context, tx execer, net NetworkID) error {
	var one int
	err := tx.QueryRowContext(ctx, `
		SELECT 1 FROM items WHERE id = ? AND type = ? AND net = id
	`, int64(net), string(schema.Network)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("network %d: %w", net, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("network %d: %w", net, err)
	}
	return nil
}

func insertItem(ctx context.Context, tx execer, net NetworkID, typ schema.Type, localID string, content ContentID, cust record.Object) (ItemID, error) {
	var custArg any
	if cust != nil {
		c, err := marshalCust(cust)
		if err != nil {
			return 0, err
		}
		custArg = c
	}
	var contentArg any
	if content != 0 {
		contentArg = int64(content)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO items (net, type, local_id, content, cust)
		VALUES (?, ?, ?, ?, ?)
	`, int64(net), string(typ), localID, contentArg, custArg)
	if err != nil {
		return 0, fmt.Errorf("insert %s %q: %w", typ, localID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s %q: %w", typ, localID, err)
	}
	return ItemID(id), nil
}

func insertDetail(ctx context.Context, tx execer, e *schema.Entity, id ContentID, values []any) error {
	cols := make([]string, 0, len(e.Fields)+1)
	cols = append(cols, "id")
	for _, name := range e.Columns() {
		cols = append(cols, quoteIdent(name))
	}
	args := make([]any, 0, len(values)+1)
	args = append(args, int64(id))
	args = append(args, values...)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(e.Table), strings.Join(cols, ", "), placeholders(len(cols)))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s detail %d: %w", e.Type, id, err)
	}
	return nil
}

// loadDetail returns the raw column values of a Detail row in field order.
func loadDetail(ctx context.Context, tx execer, e *schema.Entity, id ContentID) ([]any, error) {
	cols := make([]string, len(e.Fields))
	for i, name := range e.Columns() {
		cols[i] = quoteIdent(name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(cols, ", "), quoteIdent(e.Table))

	values := make([]any, len(e.Fields))
	dest := make([]any, len(e.Fields))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := tx.QueryRowContext(ctx, query, int64(id)).Scan(dest...); err != nil {
		return nil, fmt.Errorf("load %s detail %d: %w", e.Type, id, err)
	}
	return values, nil
}

func setContent(ctx context.Context, tx execer, item ItemID, content ContentID) error {
	if _, err := tx.ExecContext(ctx, `UPDATE items SET content = ? WHERE id = ?`, int64(content), int64(item)); err != nil {
		return fmt.Errorf("set content of %d: %w", item, err)
	}
	return nil
}

func setCust(ctx context.Context, tx execer, item ItemID, cust record.Object) error {
	var arg any
	if cust != nil {
		c, err := marshalCust(cust)
		if err != nil {
			return err
		}
		arg = c
	}
	if _, err := tx.ExecContext(ctx, `UPDATE items SET cust = ? WHERE id = ?`, arg, int64(item)); err != nil {
		return fmt.Errorf("set cust of %d: %w", item, err)
	}
	return nil
}

// sameColumn compares an encoded input value with a scanned column value.
func sameColumn(in, stored any) bool {
	if b, ok := stored.([]byte); ok {
		stored = string(b)
	}
	switch a := in.(type) {
	case nil:
		return stored == nil
	case float64:
		switch b := stored.(type) {
		case float64:
			return a == b
		case int64:
			return a == float64(b)
		}
		return false
	case int64:
		switch b := stored.(type) {
		case int64:
			return a == b
		case float64:
			return float64(a) == b
		}
		return false
	case string:
		b, ok := stored.(string)
		return ok && a == b
	}
	return false
}

func violation(typ schema.Type, net NetworkID, id, field, msg string) *IntegrityError {
	return &IntegrityError{
		Code:    ErrCodeSchemaViolation,
		Type:    typ,
		Network: net,
		ID:      id,
		Field:   field,
		Message: msg,
	}
}
