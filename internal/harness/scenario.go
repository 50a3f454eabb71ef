package harness

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/metashare/internal/decode"
)

// Scenario defines a decoder conformance scenario: a small chain built
// from named transactions, decoded into a fresh store, and checked with
// assertions on the decode trace and the resulting items.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Network overrides fields of the default network configuration
	// (currency_unit, reserved_kind, ...). Origin defaults to "memo".
	Network map[string]any `yaml:"network,omitempty"`

	// Blocks are confirmed in order, one block time apart.
	Blocks []BlockStep `yaml:"blocks,omitempty"`

	// Pending transactions are decoded after every block, as seen at the
	// time following the last block.
	Pending []TxStep `yaml:"pending,omitempty"`

	// Assertions validate the trace and the final store.
	Assertions []Assertion `yaml:"assertions"`
}

// BlockStep is one confirmed block.
type BlockStep struct {
	Txs []TxStep `yaml:"txs"`
}

// TxStep describes one transaction.
type TxStep struct {
	// Name identifies the transaction in fields, assertions and golden
	// output.
	Name string `yaml:"name"`

	// From names the signing key. Keys are derived from their names.
	From string `yaml:"from"`

	// Nonce distinguishes transactions by the same key.
	Nonce uint32 `yaml:"nonce,omitempty"`

	// Raw replaces the whole transaction with hex bytes.
	Raw string `yaml:"raw,omitempty"`

	Outputs []OutputStep `yaml:"outputs"`
}

// OutputStep is either a protocol message, a raw data output, or a
// payment.
type OutputStep struct {
	// Memo is a kind name from the protocol table ("post", "like") or a
	// code such as "0x08".
	Memo   string      `yaml:"memo,omitempty"`
	Fields []FieldStep `yaml:"fields,omitempty"`

	// Data is a data output without the protocol prefix added.
	Data []FieldStep `yaml:"data,omitempty"`

	// Pay names the key paid, with Sat base units.
	Pay string `yaml:"pay,omitempty"`
	Sat int64  `yaml:"sat,omitempty"`
}

// FieldStep is one pushed chunk. Exactly one field is set.
type FieldStep struct {
	// Text is pushed as UTF-8.
	Text *string `yaml:"text,omitempty"`

	// Hex is pushed as decoded bytes.
	Hex *string `yaml:"hex,omitempty"`

	// TxID pushes the 32-byte hash of a named transaction in wire order.
	TxID string `yaml:"txid,omitempty"`

	// TxIDText pushes the display hex of a named transaction as ASCII.
	TxIDText string `yaml:"txid_text,omitempty"`

	// Address pushes the base58 address of a named key as ASCII.
	Address string `yaml:"address,omitempty"`

	// Hash pushes the 20-byte key hash of a named key.
	Hash string `yaml:"hash,omitempty"`
}

func (f FieldStep) count() int {
	n := 0
	for _, set := range []bool{f.Text != nil, f.Hex != nil, f.TxID != "", f.TxIDText != "", f.Address != "", f.Hash != ""} {
		if set {
			n++
		}
	}
	return n
}

// Assertion validates the trace or the final store.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Tx names a transaction (event_contains, skipped, failed).
	Tx string `yaml:"tx,omitempty"`

	// Kind is an event kind (event_contains, event_count).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected event order (event_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is the expected number of events or items.
	Count int `yaml:"count,omitempty"`

	// Item is the entity type (item, item_count, placeholder, absent).
	Item string `yaml:"item,omitempty"`

	// ID is the local id. Names in braces are expanded:
	// {tx:name}, {txrev:name}, {addr:name}.
	ID string `yaml:"id,omitempty"`

	// Expect holds expected field values (subset match).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Reason is the skip reason (skipped) or error code (failed).
	Reason string `yaml:"reason,omitempty"`
}

// Assertion type constants.
const (
	AssertEventContains = "event_contains"
	AssertEventOrder    = "event_order"
	AssertEventCount    = "event_count"
	AssertItem          = "item"
	AssertItemCount     = "item_count"
	AssertPlaceholder   = "placeholder"
	AssertAbsent        = "absent"
	AssertSkipped       = "skipped"
	AssertFailed        = "failed"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that
// every name a step or assertion uses is defined.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Blocks) == 0 && len(s.Pending) == 0 {
		return fmt.Errorf("at least one block or pending transaction is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	names := make(map[string]bool)
	check := func(where string, tx TxStep) error {
		if tx.Name == "" {
			return fmt.Errorf("%s: name is required", where)
		}
		if names[tx.Name] {
			return fmt.Errorf("%s: duplicate transaction name %q", where, tx.Name)
		}
		names[tx.Name] = true
		if tx.Raw != "" {
			return nil
		}
		if tx.From == "" {
			return fmt.Errorf("%s: from is required", where)
		}
		if len(tx.Outputs) == 0 {
			return fmt.Errorf("%s: outputs list is required", where)
		}
		for i, out := range tx.Outputs {
			if err := validateOutput(out); err != nil {
				return fmt.Errorf("%s.outputs[%d]: %w", where, i, err)
			}
		}
		return nil
	}
	for b, block := range s.Blocks {
		for i, tx := range block.Txs {
			if err := check(fmt.Sprintf("blocks[%d].txs[%d]", b, i), tx); err != nil {
				return err
			}
		}
	}
	for i, tx := range s.Pending {
		if err := check(fmt.Sprintf("pending[%d]", i), tx); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, names); err != nil {
			return err
		}
	}
	return nil
}

func validateOutput(out OutputStep) error {
	set := 0
	if out.Memo != "" {
		set++
		if _, err := kindCode(out.Memo); err != nil {
			return err
		}
	}
	if len(out.Data) > 0 {
		set++
	}
	if out.Pay != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of memo, data, pay is required")
	}
	for i, f := range append(append([]FieldStep{}, out.Fields...), out.Data...) {
		if f.count() != 1 {
			return fmt.Errorf("field %d: exactly one of text, hex, txid, txid_text, address, hash is required", i)
		}
	}
	return nil
}

// kindCode resolves a kind name or hex code.
func kindCode(kind string) (byte, error) {
	if strings.HasPrefix(kind, "0x") {
		n, err := strconv.ParseUint(kind[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid kind code %q", kind)
		}
		return byte(n), nil
	}
	p := decode.V1()
	for _, code := range p.Codes() {
		if name, _ := p.Name(code); name == kind {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown message kind %q", kind)
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, names map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Tx != "" && !names[a.Tx] {
		return fmt.Errorf("assertions[%d]: unknown transaction %q", index, a.Tx)
	}

	switch a.Type {
	case AssertEventContains:
		if a.Kind == "" || a.Tx == "" {
			return fmt.Errorf("assertions[%d]: kind and tx are required for event_contains", index)
		}
	case AssertEventOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertItem:
		if a.Item == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: item and id are required for item", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for item", index)
		}
	case AssertItemCount:
		if a.Item == "" {
			return fmt.Errorf("assertions[%d]: item is required for item_count", index)
		}
	case AssertPlaceholder, AssertAbsent:
		if a.Item == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: item and id are required for %s", index, a.Type)
		}
	case AssertSkipped, AssertFailed:
		if a.Tx == "" || a.Reason == "" {
			return fmt.Errorf("assertions[%d]: tx and reason are required for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
