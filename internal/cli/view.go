package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/store"
)

// ItemView is the printable form of a store.Record.
type ItemView struct {
	Type    string        `json:"type"`
	Item    int64         `json:"item"`
	Content int64         `json:"content"`
	Fields  record.Object `json:"fields"`
	Origin  store.Origin  `json:"origin"`
}

func newItemView(rec store.Record) ItemView {
	return ItemView{
		Type:    string(rec.Type),
		Item:    int64(rec.Item),
		Content: int64(rec.Content),
		Fields:  rec.Fields,
		Origin:  rec.Origin,
	}
}

// writeText prints one line per item: type, local id, content, then
// the fields in key order.
func (v ItemView) writeText(w io.Writer) error {
	id, _ := v.Fields.Str("id")
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (content %d", v.Type, id, v.Content)
	if v.Origin.ID != id {
		fmt.Fprintf(&b, ", from %s/%s", v.Origin.Network, v.Origin.ID)
	}
	b.WriteString(")")
	for _, k := range v.Fields.SortedKeys() {
		if k == "id" {
			continue
		}
		data, err := record.Marshal(v.Fields[k])
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, " %s=%s", k, data)
	}
	_, err := fmt.Fprintln(w, b.String())
	return err
}

// ItemList is the result of commands that print items.
type ItemList []ItemView

// WriteText implements text output.
func (l ItemList) WriteText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No items found")
		return err
	}
	for _, v := range l {
		if err := v.writeText(w); err != nil {
			return err
		}
	}
	return nil
}
