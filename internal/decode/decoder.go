package decode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/roach88/metashare/internal/ledger"
	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
	"github.com/roach88/metashare/internal/store"
)

// Store is the part of the entity store the decoder writes through.
// *store.Store implements it.
type Store interface {
	Put(ctx context.Context, typ schema.Type, net store.NetworkID, obj record.Object) (store.ContentID, error)
	Get(ctx context.Context, typ schema.Type, net store.NetworkID, f store.Filter) ([]store.Record, error)
	Find(ctx context.Context, typ schema.Type, net store.NetworkID, candidates ...string) (store.Resolution, error)
	ResolveOrCreate(ctx context.Context, typ schema.Type, net store.NetworkID, candidates ...string) (store.Resolution, error)
}

var _ Store = (*store.Store)(nil)

// Skip reasons reported in Result.Skip.
const (
	SkipDenied    = "denied"
	SkipNoAuthor  = "no-author"
	SkipNoMessage = "no-message"
)

// Result describes what one transaction produced.
type Result struct {
	TxID   string `json:"tx"`
	Author string `json:"author,omitempty"`

	// Skip is set when the transaction was passed over without writes.
	Skip string `json:"skip,omitempty"`

	// Events lists the items written, in order. The first one is the
	// item pay opinions of the transaction link to.
	Events []Event `json:"events"`
}

// Event is one item written for a message.
type Event struct {
	Kind string      `json:"kind"`
	Type schema.Type `json:"type"`
	ID   string      `json:"id"`
}

// Decoder decodes the transactions of one network. It is not safe for
// concurrent use; a network's transactions are decoded one at a time.
type Decoder struct {
	store   Store
	net     store.NetworkID
	proto   *Protocol
	params  *chaincfg.Params
	unit    string
	perUnit float64
	maxSize int
	log     *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithProtocol sets the dispatch table. Default: V1().
func WithProtocol(p *Protocol) Option {
	return func(d *Decoder) { d.proto = p }
}

// WithParams sets the chain parameters used for addresses.
// Default: mainnet.
func WithParams(p *chaincfg.Params) Option {
	return func(d *Decoder) { d.params = p }
}

// WithCurrency sets the unit recorded on payments and how many base units
// (satoshis) make one of it. Default: BCH, 1e8.
func WithCurrency(unit string, perUnit float64) Option {
	return func(d *Decoder) {
		d.unit = unit
		d.perUnit = perUnit
	}
}

// WithMaxMessageSize rejects messages whose data after the two prefix
// bytes is longer than n. Zero disables the check. Default: 220.
func WithMaxMessageSize(n int) Option {
	return func(d *Decoder) { d.maxSize = n }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) { d.log = l }
}

// New creates a decoder writing items of network net through s.
func New(s Store, net store.NetworkID, opts ...Option) *Decoder {
	d := &Decoder{
		store:   s,
		net:     net,
		proto:   V1(),
		params:  &chaincfg.MainNetParams,
		unit:    "BCH",
		perUnit: 1e8,
		maxSize: 220,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// txn is the state shared by the messages of one transaction.
type txn struct {
	tx       *ledger.Tx
	author   string
	at       time.Time
	payments payments
}

// message is one parsed data output.
type message struct {
	h    handler
	code byte
	vout int

	// id is the local id of the item the message produces: the txid for
	// the first message of a transaction, "txid:vout" for later ones.
	id string

	target   []string
	address  string
	topic    string
	text     string
	geo      string
	pollType int
	options  int
}

// DecodeRaw parses raw and decodes it. Bytes that are not a transaction
// yield a DecodeError.
func (d *Decoder) DecodeRaw(ctx context.Context, raw []byte, at time.Time) (Result, error) {
	tx, err := ledger.ParseTx(raw)
	if err != nil {
		return Result{Events: []Event{}}, &DecodeError{
			TxID:    chainhash.DoubleHashH(raw).String(),
			Message: "unparsable transaction",
			Err:     err,
		}
	}
	return d.Decode(ctx, tx, at)
}

// Decode writes the items carried by tx, stamped with at.
//
// Denied and authorless transactions are skipped without error. A
// malformed message returns a DecodeError and nothing is written. Store
// failures are returned wrapped; IntegrityErrors stay reachable with
// errors.As.
func (d *Decoder) Decode(ctx context.Context, tx *ledger.Tx, at time.Time) (Result, error) {
	res := Result{TxID: tx.ID, Events: []Event{}}

	if Denied(tx.ID) {
		res.Skip = SkipDenied
		return res, nil
	}

	author := ledger.Author(tx, d.params)
	if author == "" {
		res.Skip = SkipNoAuthor
		return res, nil
	}
	res.Author = author

	t := &txn{tx: tx, author: author, at: at}
	msgs, err := d.scan(t)
	if err != nil {
		return res, err
	}
	if len(msgs) == 0 {
		res.Skip = SkipNoMessage
		return res, nil
	}

	if err := d.ensureUser(ctx, author, at); err != nil {
		return res, fmt.Errorf("decode %s: author: %w", tx.ID, err)
	}

	for _, m := range msgs {
		events, err := m.h.apply(ctx, d, t, m)
		if err != nil {
			return res, fmt.Errorf("decode %s: %s %s: %w", tx.ID, m.h.name, m.id, err)
		}
		res.Events = append(res.Events, events...)
	}

	if len(res.Events) == 0 {
		return res, nil
	}
	link := record.Ref{Type: string(res.Events[0].Type), ID: res.Events[0].ID}
	for _, p := range t.payments.remaining() {
		ev, err := d.pay(ctx, t, p, link)
		if err != nil {
			return res, fmt.Errorf("decode %s: pay %d: %w", tx.ID, p.vout, err)
		}
		res.Events = append(res.Events, ev)
	}

	d.log.Debug("tx decoded", "tx", tx.ID, "author", author, "events", len(res.Events))
	return res, nil
}

// scan collects payments and parses every protocol message of t.tx.
func (d *Decoder) scan(t *txn) ([]*message, error) {
	var msgs []*message
	for vout, out := range t.tx.Outputs {
		chunks, ok := ledger.DataChunks(out.Script)
		if !ok {
			addr := ledger.ScriptAddress(out.Script, d.params)
			if addr != "" && addr != t.author && out.Value > 0 {
				t.payments.add(vout, addr, out.Value)
			}
			continue
		}

		p := newPayload(chunks)
		if len(p.data) < 2 || p.data[0] != d.proto.Prefix {
			continue
		}
		code := p.data[1]
		if code >= d.proto.Reserved {
			d.log.Debug("reserved message kind ignored", "tx", t.tx.ID, "vout", vout, "kind", fmt.Sprintf("0x%02x", code))
			continue
		}
		h, ok := d.proto.handlers[code]
		if !ok {
			return nil, &DecodeError{
				TxID:    t.tx.ID,
				Kind:    fmt.Sprintf("0x%02x", code),
				Message: "unrecognized message kind",
			}
		}
		if d.maxSize > 0 && len(p.data)-2 > d.maxSize {
			return nil, &DecodeError{
				TxID:    t.tx.ID,
				Kind:    h.name,
				Message: fmt.Sprintf("message of %d bytes exceeds %d", len(p.data)-2, d.maxSize),
			}
		}

		m, err := h.parse(p, d.params)
		if err != nil {
			return nil, &DecodeError{TxID: t.tx.ID, Kind: h.name, Message: "malformed message", Err: err}
		}
		m.h, m.code, m.vout = h, code, vout
		m.id = t.tx.ID
		if len(msgs) > 0 {
			m.id = fmt.Sprintf("%s:%d", t.tx.ID, vout)
		}
		msgs = append(msgs, &m)
	}
	return msgs, nil
}

// ensure puts obj unless an item of typ with its id is already resolved.
func (d *Decoder) ensure(ctx context.Context, typ schema.Type, obj record.Object) error {
	id, _ := obj.Str("id")
	res, err := d.store.Find(ctx, typ, d.net, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err == nil && res.Resolved() {
		return nil
	}
	_, err = d.store.Put(ctx, typ, d.net, obj)
	return err
}

func (d *Decoder) ensureUser(ctx context.Context, address string, at time.Time) error {
	return d.ensure(ctx, schema.User, record.NewObject(
		record.P("id", record.String(address)),
		record.P("time", record.T(at)),
	))
}

func (d *Decoder) ensureTopic(ctx context.Context, name string, at time.Time) error {
	return d.ensure(ctx, schema.Topic, record.NewObject(
		record.P("id", record.String(name)),
		record.P("time", record.T(at)),
		record.P("name", record.String(name)),
	))
}

// postAuthor returns the local user id of a resolved post.
func (d *Decoder) postAuthor(ctx context.Context, id string) (string, error) {
	recs, err := d.store.Get(ctx, schema.Post, d.net, store.Filter{ID: id, Limit: 1})
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", fmt.Errorf("post %q: %w", id, store.ErrNotFound)
	}
	user, _ := recs[0].Fields.Str("user")
	return user, nil
}

// amount converts base units to the configured currency.
func (d *Decoder) amount(sat int64) float64 {
	if d.perUnit == 0 {
		return float64(sat)
	}
	return float64(sat) / d.perUnit
}

// pay records an unconsumed payment output as a pay opinion.
func (d *Decoder) pay(ctx context.Context, t *txn, p *payment, link record.Ref) (Event, error) {
	if err := d.ensureUser(ctx, p.address, t.at); err != nil {
		return Event{}, err
	}
	id := fmt.Sprintf("%s:%d", t.tx.ID, p.vout)
	obj := opinionObj(id, t, schema.HowPay, record.Ref{Type: string(schema.User), ID: p.address}, d.amount(p.sat))
	obj["unit"] = record.String(d.unit)
	obj["link"] = link
	if _, err := d.store.Put(ctx, schema.Opinion, d.net, obj); err != nil {
		return Event{}, err
	}
	return Event{Kind: "pay", Type: schema.Opinion, ID: id}, nil
}
