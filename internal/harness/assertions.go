package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
	"github.com/roach88/metashare/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s (%s)", i+1, ev.Tx, ev.Source)
			switch {
			case ev.Error != "":
				fmt.Fprintf(&buf, " error %s", ev.Error)
			case ev.Skip != "":
				fmt.Fprintf(&buf, " skipped %s", ev.Skip)
			}
			for _, e := range ev.Events {
				fmt.Fprintf(&buf, " %s", e.Kind)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Network store.NetworkID

	// Expand resolves symbolic names in ids and expected values. Nil
	// leaves them unchanged.
	Expand func(string) string
}

func (a *AssertionContext) expand(s string) string {
	if a == nil || a.Expand == nil {
		return s
	}
	return a.Expand(s)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// Store assertions need actx.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventContains:
			err = assertEventContains(result.Trace, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, assertion)
		case AssertEventCount:
			err = assertEventCount(result.Trace, assertion)
		case AssertSkipped, AssertFailed:
			err = assertOutcome(result.Trace, assertion)
		case AssertItem, AssertItemCount, AssertPlaceholder, AssertAbsent:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires store context", i, assertion.Type)
				break
			}
			err = assertStore(actx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// assertEventContains checks that the named transaction produced an
// event of the given kind.
func assertEventContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Tx != a.Tx {
			continue
		}
		for _, e := range ev.Events {
			if e.Kind == a.Kind {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertEventContains,
		Expected: fmt.Sprintf("%s event from %s", a.Kind, a.Tx),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertEventOrder checks that the first occurrences of the kinds appear
// in order. Other events may come between them.
func assertEventOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	pos := 0
	for _, ev := range trace {
		for _, e := range ev.Events {
			pos++
			if _, seen := positions[e.Kind]; !seen {
				positions[e.Kind] = pos
			}
		}
	}

	for _, kind := range a.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all kinds present: %v", a.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Kinds); i++ {
		prev, curr := a.Kinds[i-1], a.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertEventCount checks the number of events of a kind, optionally
// restricted to one transaction.
func assertEventCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if a.Tx != "" && ev.Tx != a.Tx {
			continue
		}
		for _, e := range ev.Events {
			if e.Kind == a.Kind {
				count++
			}
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertOutcome checks the skip reason or error code of every decode of
// the named transaction.
func assertOutcome(trace []TraceEvent, a Assertion) error {
	found := false
	for _, ev := range trace {
		if ev.Tx != a.Tx {
			continue
		}
		found = true
		actual := ev.Skip
		if a.Type == AssertFailed {
			actual = ev.Error
		}
		if actual != a.Reason {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s %s with %q", a.Tx, a.Type, a.Reason),
				Actual:   fmt.Sprintf("%q (%s)", actual, ev.Source),
				Trace:    trace,
			}
		}
	}
	if !found {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s decoded", a.Tx),
			Actual:   "not in trace",
			Trace:    trace,
		}
	}
	return nil
}

func assertStore(actx *AssertionContext, a Assertion) error {
	typ := schema.Type(a.Item)
	if _, err := schema.Lookup(typ); err != nil {
		return fmt.Errorf("%s assertion: %w", a.Type, err)
	}
	id := actx.expand(a.ID)

	switch a.Type {
	case AssertItemCount:
		n, err := actx.Store.Count(actx.Ctx, typ, actx.Network)
		if err != nil {
			return err
		}
		if n != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d %s items", a.Count, typ),
				Actual:   fmt.Sprintf("%d items", n),
			}
		}
		return nil

	case AssertPlaceholder, AssertAbsent:
		res, err := actx.Store.Find(actx.Ctx, typ, actx.Network, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		exists := err == nil
		if a.Type == AssertAbsent && exists {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("no %s %s", typ, a.ID),
				Actual:   fmt.Sprintf("item %d (resolved=%v)", res.Item, res.Resolved()),
			}
		}
		if a.Type == AssertPlaceholder && (!exists || res.Resolved()) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("placeholder %s %s", typ, a.ID),
				Actual:   fmt.Sprintf("exists=%v resolved=%v", exists, exists && res.Resolved()),
			}
		}
		return nil
	}

	rec, err := actx.Store.GetOne(actx.Ctx, typ, actx.Network, id)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s %s", typ, a.ID),
			Actual:   "item not found",
		}
	}
	if err != nil {
		return err
	}
	return matchFields(actx, a, rec.Fields)
}

// matchFields compares expected values with the stored fields through
// their JSON forms, so YAML numbers match Int and Float alike and a Ref
// matches a {type, id} map.
func matchFields(actx *AssertionContext, a Assertion, fields record.Object) error {
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expected := normalize(expandAll(actx, a.Expect[key]))
		v, ok := fields[key]
		if !ok {
			if expected == nil {
				continue
			}
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s %s field %q = %v", a.Item, a.ID, key, expected),
				Actual:   "field not present",
			}
		}
		data, err := record.Marshal(v)
		if err != nil {
			return err
		}
		var actual any
		if err := json.Unmarshal(data, &actual); err != nil {
			return err
		}
		if !reflect.DeepEqual(actual, expected) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s %s field %q = %v", a.Item, a.ID, key, expected),
				Actual:   fmt.Sprintf("%v", actual),
			}
		}
	}
	return nil
}

// expandAll expands symbolic names in every string of v.
func expandAll(actx *AssertionContext, v any) any {
	switch val := v.(type) {
	case string:
		return actx.expand(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = expandAll(actx, e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = expandAll(actx, e)
		}
		return out
	}
	return v
}

// normalize round-trips v through JSON so numbers become float64.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
