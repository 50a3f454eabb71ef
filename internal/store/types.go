package store

import (
	"strconv"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
)

// ItemID is the store-wide id of an item row.
type ItemID int64

// ContentID is the id of a Detail row. It equals the ItemID of the item
// that first resolved the content. Placeholders have none.
type ContentID int64

// NetworkID is the ItemID of a network's own item.
type NetworkID int64

func (id ItemID) String() string    { return strconv.FormatInt(int64(id), 10) }
func (id ContentID) String() string { return strconv.FormatInt(int64(id), 10) }
func (id NetworkID) String() string { return strconv.FormatInt(int64(id), 10) }

// Record is one resolved item as seen from a network.
type Record struct {
	// Item is the id of the item row under the requesting network.
	Item ItemID

	// Content is the id of the Detail row.
	Content ContentID

	Type schema.Type

	// Fields holds "id", every present Detail field with references
	// translated to local ids, and "cust" when the item has one.
	Fields record.Object

	// Origin is the network and local id under which the content was
	// first resolved. For items that are not mirrors it repeats the
	// requesting network and Fields["id"].
	Origin Origin
}

// Origin identifies where a piece of content came from.
type Origin struct {
	Network string `json:"network"`
	ID      string `json:"id"`
}

// Filter selects items for Get. Zero fields do not filter.
type Filter struct {
	Item    ItemID
	Content ContentID

	// ID matches the network-local id.
	ID string

	// Where matches fields by equality. Reference fields compare against
	// the local id of the referent under the requesting network (a
	// record.Ref for Any references).
	Where record.Object

	// Limit caps the number of results.
	Limit int

	// Desc returns the newest items first.
	Desc bool
}

// Resolution is the result of ResolveOrCreate.
type Resolution struct {
	Item ItemID

	// LocalID is the candidate that matched, or the first candidate when
	// a placeholder was created.
	LocalID string

	// Content is set when the item is resolved.
	Content ContentID

	// Created reports that a placeholder was inserted by this call.
	Created bool
}

// Resolved reports whether the item has content.
func (r Resolution) Resolved() bool {
	return r.Content != 0
}

// Ref returns the id to store in a reference column pointing at this
// item: its content id, or its own id while it is a placeholder.
func (r Resolution) Ref() int64 {
	if r.Content != 0 {
		return int64(r.Content)
	}
	return int64(r.Item)
}

// Item is the envelope of one item row.
type Item struct {
	ID      ItemID
	Network NetworkID
	Type    schema.Type
	LocalID string
	Content ContentID
}
