// Package config loads network configuration files.
//
// A file is YAML, checked against the #Network definition in network.cue
// and then completed with defaults:
//
//	origin: memo.cash
//	name: memo
//	chain: mainnet
//	currency_unit: BCH
//	units_per_currency: 100000000
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/metashare/internal/record"
)

//go:embed network.cue
var schemaSource string

// Defaults.
const (
	DefaultChain          = "mainnet"
	DefaultCurrencyUnit   = "BCH"
	DefaultUnitsPerUnit   = 1e8
	DefaultReservedKind   = 0x30
	DefaultMaxMessageSize = 220
	DefaultSaveEvery      = 16
)

// Network configures one bridged network.
type Network struct {
	// Origin is the globally unique id of the network.
	Origin string `json:"origin" yaml:"origin"`

	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Site string `json:"site,omitempty" yaml:"site,omitempty"`

	// Chain selects address parameters: mainnet, testnet3 or regtest.
	Chain string `json:"chain,omitempty" yaml:"chain,omitempty"`

	// StartBlock is the hash of the first block replayed when the network
	// has no cursor yet. Empty starts at the first block.
	StartBlock string `json:"start_block,omitempty" yaml:"start_block,omitempty"`

	CurrencyUnit     string  `json:"currency_unit,omitempty" yaml:"currency_unit,omitempty"`
	UnitsPerCurrency float64 `json:"units_per_currency,omitempty" yaml:"units_per_currency,omitempty"`

	// ReservedKind is the lowest ignored message kind code.
	ReservedKind int `json:"reserved_kind,omitempty" yaml:"reserved_kind,omitempty"`

	MaxMessageSize int `json:"max_message_size,omitempty" yaml:"max_message_size,omitempty"`

	// SaveEvery forces a cursor save every N blocks even without events.
	SaveEvery int `json:"save_every,omitempty" yaml:"save_every,omitempty"`

	// BlocksPerSecond throttles block reads. Zero is unthrottled.
	BlocksPerSecond float64 `json:"blocks_per_second,omitempty" yaml:"blocks_per_second,omitempty"`
}

// Default returns the configuration of origin with every default set.
func Default(origin string) Network {
	n := Network{Origin: origin}
	n.applyDefaults()
	return n
}

func (n *Network) applyDefaults() {
	if n.Chain == "" {
		n.Chain = DefaultChain
	}
	if n.CurrencyUnit == "" {
		n.CurrencyUnit = DefaultCurrencyUnit
	}
	if n.UnitsPerCurrency == 0 {
		n.UnitsPerCurrency = DefaultUnitsPerUnit
	}
	if n.ReservedKind == 0 {
		n.ReservedKind = DefaultReservedKind
	}
	if n.MaxMessageSize == 0 {
		n.MaxMessageSize = DefaultMaxMessageSize
	}
	if n.SaveEvery == 0 {
		n.SaveEvery = DefaultSaveEvery
	}
}

// Load reads and validates a configuration file.
func Load(path string) (Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Network{}, fmt.Errorf("failed to read config: %w", err)
	}
	n, err := Parse(data)
	if err != nil {
		return Network{}, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// Parse validates YAML (or JSON) configuration and applies defaults.
func Parse(data []byte) (Network, error) {
	raw, err := decodeRaw(data)
	if err != nil {
		return Network{}, err
	}
	var n Network
	if err := check(raw, &n); err != nil {
		return Network{}, err
	}
	n.applyDefaults()
	return n, nil
}

// Validate checks n, defaults included, against the schema.
func (n Network) Validate() error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	// YAML keeps integral numbers as ints, which the schema's int fields need.
	raw, err := decodeRaw(data)
	if err != nil {
		return err
	}
	return check(raw, &Network{})
}

func decodeRaw(data []byte) (map[string]any, error) {
	var raw map[string]any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// check unifies raw with #Network and decodes the result into out.
func check(raw map[string]any, out *Network) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("network.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Network"))

	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	if err := v.Decode(out); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Object returns n as a record for the network's custom blob.
func (n Network) Object() (record.Object, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return record.UnmarshalObject(data)
}

// FromObject restores a configuration stored with Object.
func FromObject(obj record.Object) (Network, error) {
	data, err := record.Marshal(obj)
	if err != nil {
		return Network{}, fmt.Errorf("decode config: %w", err)
	}
	return Parse(data)
}
