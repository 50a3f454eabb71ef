package harness

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/roach88/metashare/internal/config"
	"github.com/roach88/metashare/internal/decode"
	"github.com/roach88/metashare/internal/ledger"
	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/store"
	"github.com/roach88/metashare/internal/testutil"
)

// Harness is the scenario execution engine. Each harness owns a fresh
// in-memory store, so scenarios are isolated from each other.
type Harness struct {
	scenario *Scenario
	store    *store.Store
	net      store.NetworkID
	dec      *decode.Decoder
	chain    *ledger.Chain
	clock    *testutil.BlockClock
	logger   *slog.Logger

	keys  map[string]testutil.Key
	steps map[string]*TxStep
	built map[string]*builtTx
	byID  map[string]string
}

type builtTx struct {
	name  string
	id    string
	wire  []byte // hash in wire order
	raw   []byte
	state int // 0 pending, 1 building, 2 built
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a fresh in-memory store and register the network
//  2. Build every transaction and the chain
//  3. Decode confirmed blocks in order, then the mempool
//  4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	h, err := New(scenario)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return h.Run(context.Background())
}

// New prepares a harness for scenario.
func New(scenario *Scenario) (*Harness, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		store:    st,
		chain:    ledger.NewChain(),
		clock:    testutil.NewBlockClock(testutil.Epoch),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		keys:     make(map[string]testutil.Key),
		steps:    make(map[string]*TxStep),
		built:    make(map[string]*builtTx),
		byID:     make(map[string]string),
	}
	if err := h.setup(context.Background()); err != nil {
		st.Close()
		return nil, err
	}
	return h, nil
}

// Close releases the store.
func (h *Harness) Close() error {
	return h.store.Close()
}

// Store returns the harness store, for inspection after Run.
func (h *Harness) Store() (*store.Store, store.NetworkID) {
	return h.store, h.net
}

func (h *Harness) setup(ctx context.Context) error {
	cfg, err := h.config()
	if err != nil {
		return fmt.Errorf("network config: %w", err)
	}
	blob, err := cfg.Object()
	if err != nil {
		return fmt.Errorf("network config: %w", err)
	}
	params, err := ledger.Params(cfg.Chain)
	if err != nil {
		return fmt.Errorf("network config: %w", err)
	}

	h.net, err = h.store.OpenNetwork(ctx, cfg.Origin,
		record.NewObject(record.P("time", record.T(h.clock.Current()))), blob)
	if err != nil {
		return fmt.Errorf("register network: %w", err)
	}
	h.dec = decode.New(h.store, h.net,
		decode.WithProtocol(decode.V1().WithReserved(byte(cfg.ReservedKind))),
		decode.WithParams(params),
		decode.WithCurrency(cfg.CurrencyUnit, cfg.UnitsPerCurrency),
		decode.WithMaxMessageSize(cfg.MaxMessageSize),
		decode.WithLogger(h.logger),
	)

	for b := range h.scenario.Blocks {
		for i := range h.scenario.Blocks[b].Txs {
			tx := &h.scenario.Blocks[b].Txs[i]
			h.steps[tx.Name] = tx
		}
	}
	for i := range h.scenario.Pending {
		tx := &h.scenario.Pending[i]
		h.steps[tx.Name] = tx
	}

	for b, block := range h.scenario.Blocks {
		raws := make([][]byte, 0, len(block.Txs))
		for _, step := range block.Txs {
			tx, err := h.build(step.Name)
			if err != nil {
				return err
			}
			raws = append(raws, tx.raw)
		}
		if _, err := h.chain.AddBlock(testutil.BlockHash(b), int64(b), h.clock.Next(), raws...); err != nil {
			return fmt.Errorf("block %d: %w", b, err)
		}
	}
	seen := h.clock.Next()
	for _, step := range h.scenario.Pending {
		tx, err := h.build(step.Name)
		if err != nil {
			return err
		}
		if _, err := h.chain.AddPending(seen, tx.raw); err != nil {
			return fmt.Errorf("pending %s: %w", step.Name, err)
		}
	}
	return nil
}

// config returns the default configuration with the scenario's
// overrides applied.
func (h *Harness) config() (config.Network, error) {
	base := config.Default("memo")
	if len(h.scenario.Network) == 0 {
		return base, nil
	}
	obj, err := base.Object()
	if err != nil {
		return config.Network{}, err
	}
	overrides, err := record.ObjectFromAny(h.scenario.Network)
	if err != nil {
		return config.Network{}, err
	}
	for k, v := range overrides {
		obj[k] = v
	}
	return config.FromObject(obj)
}

// Run decodes every block and then the mempool, and evaluates the
// assertions.
func (h *Harness) Run(ctx context.Context) (*Result, error) {
	result := NewResult()

	err := h.chain.Blocks(ctx, "", func(b *ledger.Block) error {
		for _, tx := range b.Txs {
			result.AddTrace(h.decode(ctx, tx, "block", b.Time))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replay blocks: %w", err)
	}

	pending, err := h.chain.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read mempool: %w", err)
	}
	for _, p := range pending {
		result.AddTrace(h.decode(ctx, p.Tx, "mempool", p.Seen))
	}

	actx := &AssertionContext{Ctx: ctx, Store: h.store, Network: h.net, Expand: h.expand}
	for _, msg := range EvaluateAssertions(result, h.scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) decode(ctx context.Context, tx *ledger.Tx, source string, at time.Time) TraceEvent {
	ev := TraceEvent{Tx: h.byID[tx.ID], Source: source}
	res, err := h.dec.Decode(ctx, tx, at)
	if err != nil {
		ev.Error = errorCode(err)
		h.logger.Info("decode failed", "tx", ev.Tx, "error", err)
		return ev
	}
	ev.Skip = res.Skip
	ev.Events = res.Events
	return ev
}

// errorCode classifies a decode failure.
func errorCode(err error) string {
	var ie *store.IntegrityError
	switch {
	case errors.As(err, &ie):
		return string(ie.Code)
	case decode.IsDecodeError(err):
		return "DECODE_ERROR"
	}
	return "ERROR"
}

// key returns the deterministic key for name.
func (h *Harness) key(name string) testutil.Key {
	k, ok := h.keys[name]
	if !ok {
		k = testutil.NewKey(name)
		h.keys[name] = k
	}
	return k
}

// build serializes the named transaction, building the transactions its
// fields refer to first.
func (h *Harness) build(name string) (*builtTx, error) {
	if tx, ok := h.built[name]; ok {
		if tx.state == 1 {
			return nil, fmt.Errorf("transaction %q refers to itself", name)
		}
		return tx, nil
	}
	step, ok := h.steps[name]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %q", name)
	}
	tx := &builtTx{name: name, state: 1}
	h.built[name] = tx

	if step.Raw != "" {
		parsed, err := ledger.ParseTxHex(step.Raw)
		if err != nil {
			return nil, fmt.Errorf("transaction %q: %w", name, err)
		}
		tx.raw = parsed.Raw
		tx.id = parsed.ID
	} else {
		b := testutil.NewTx(h.key(step.From), step.Nonce)
		for i, out := range step.Outputs {
			if err := h.addOutput(b, out); err != nil {
				return nil, fmt.Errorf("transaction %q output %d: %w", name, i, err)
			}
		}
		raw, err := b.Raw()
		if err != nil {
			return nil, fmt.Errorf("transaction %q: %w", name, err)
		}
		tx.raw = raw
		tx.id = b.ID()
	}

	parsed, err := ledger.ParseTx(tx.raw)
	if err != nil {
		return nil, fmt.Errorf("transaction %q: %w", name, err)
	}
	tx.wire, _ = hex.DecodeString(reverseHex(parsed.ID))
	tx.state = 2
	h.byID[tx.id] = name
	return tx, nil
}

func (h *Harness) addOutput(b *testutil.TxBuilder, out OutputStep) error {
	switch {
	case out.Pay != "":
		b.Pay(h.key(out.Pay).Address, out.Sat)
		return nil
	case out.Memo != "":
		code, err := kindCode(out.Memo)
		if err != nil {
			return err
		}
		fields, err := h.chunks(out.Fields)
		if err != nil {
			return err
		}
		b.Memo(code, fields...)
		return nil
	default:
		chunks, err := h.chunks(out.Data)
		if err != nil {
			return err
		}
		b.Data(chunks...)
		return nil
	}
}

func (h *Harness) chunks(fields []FieldStep) ([][]byte, error) {
	chunks := make([][]byte, 0, len(fields))
	for _, f := range fields {
		switch {
		case f.Text != nil:
			chunks = append(chunks, []byte(*f.Text))
		case f.Hex != nil:
			b, err := hex.DecodeString(*f.Hex)
			if err != nil {
				return nil, fmt.Errorf("hex field: %w", err)
			}
			chunks = append(chunks, b)
		case f.TxID != "":
			tx, err := h.build(f.TxID)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, tx.wire)
		case f.TxIDText != "":
			tx, err := h.build(f.TxIDText)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, []byte(tx.id))
		case f.Address != "":
			chunks = append(chunks, []byte(h.key(f.Address).Address))
		case f.Hash != "":
			chunks = append(chunks, h.key(f.Hash).Hash)
		}
	}
	return chunks, nil
}

var symbolRef = regexp.MustCompile(`\{(tx|txrev|addr):([A-Za-z0-9_-]+)\}`)

// expand replaces {tx:name}, {txrev:name} and {addr:name} with the
// transaction id, its wire-order hex, or the key's address.
func (h *Harness) expand(s string) string {
	return symbolRef.ReplaceAllStringFunc(s, func(m string) string {
		parts := symbolRef.FindStringSubmatch(m)
		switch parts[1] {
		case "addr":
			return h.key(parts[2]).Address
		case "tx":
			if tx, ok := h.built[parts[2]]; ok {
				return tx.id
			}
		case "txrev":
			if tx, ok := h.built[parts[2]]; ok {
				return hex.EncodeToString(tx.wire)
			}
		}
		return m
	})
}

// symbolizer is the inverse of expand, for golden output.
func (h *Harness) symbolizer() *strings.Replacer {
	var pairs []string
	for name, tx := range h.built {
		pairs = append(pairs,
			tx.id, "{tx:"+name+"}",
			hex.EncodeToString(tx.wire), "{txrev:"+name+"}")
	}
	for name, k := range h.keys {
		pairs = append(pairs, k.Address, "{addr:"+name+"}")
	}
	return strings.NewReplacer(pairs...)
}

func reverseHex(s string) string {
	b, err := hex.DecodeString(s)
	if err != nil {
		return s
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return hex.EncodeToString(b)
}
