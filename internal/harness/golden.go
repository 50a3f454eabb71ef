package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
)

// Snapshot renders the trace of result and the item count of every
// non-network type as indented canonical JSON. Transaction ids and
// addresses are replaced by their symbolic names, so golden files do not
// change when transaction encoding does.
func (h *Harness) Snapshot(ctx context.Context, result *Result) ([]byte, error) {
	trace := make(record.Array, len(result.Trace))
	for i, ev := range result.Trace {
		events := make(record.Array, len(ev.Events))
		for j, e := range ev.Events {
			events[j] = record.NewObject(
				record.P("kind", record.String(e.Kind)),
				record.P("type", record.String(string(e.Type))),
				record.P("id", record.String(e.ID)),
			)
		}
		obj := record.NewObject(
			record.P("tx", record.String(ev.Tx)),
			record.P("source", record.String(ev.Source)),
			record.P("events", events),
		)
		if ev.Skip != "" {
			obj["skip"] = record.String(ev.Skip)
		}
		if ev.Error != "" {
			obj["error"] = record.String(ev.Error)
		}
		trace[i] = obj
	}

	counts := record.Object{}
	for _, typ := range schema.Types() {
		if typ == schema.Network {
			continue
		}
		n, err := h.store.Count(ctx, typ, h.net)
		if err != nil {
			return nil, fmt.Errorf("snapshot: %w", err)
		}
		counts[string(typ)] = record.Int(n)
	}

	snapshot := record.NewObject(
		record.P("scenario", record.String(h.scenario.Name)),
		record.P("trace", trace),
		record.P("counts", counts),
	)
	data, err := record.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	buf.WriteByte('\n')
	return []byte(h.symbolizer().Replace(buf.String())), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Assertion failures are reported in the returned result, not through t.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	h, err := New(scenario)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	ctx := context.Background()
	result, err := h.Run(ctx)
	if err != nil {
		return nil, err
	}
	snapshot, err := h.Snapshot(ctx, result)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, snapshot)
	return result, nil
}

// AssertGolden compares a snapshot against the golden file called name.
func AssertGolden(t *testing.T, name string, snapshot []byte) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
}
