package decode

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
	"github.com/roach88/metashare/internal/store"
)

// Parsers. Offsets count from the start of the data, so 2 skips the
// prefix and kind bytes.

func parseRest(p payload, _ *chaincfg.Params) (message, error) {
	return message{text: p.rest(2)}, nil
}

func parseText(p payload, _ *chaincfg.Params) (message, error) {
	return message{text: p.text(2)}, nil
}

func parseTarget(p payload, _ *chaincfg.Params) (message, error) {
	target, next, err := p.txid(2)
	if err != nil {
		return message{}, err
	}
	if next != len(p.data) {
		return message{}, errField("txid", "%d excess bytes", len(p.data)-next)
	}
	return message{target: target}, nil
}

func parseTargetText(p payload, _ *chaincfg.Params) (message, error) {
	target, next, err := p.txid(2)
	if err != nil {
		return message{}, err
	}
	return message{target: target, text: p.text(next)}, nil
}

func parseAddress(p payload, params *chaincfg.Params) (message, error) {
	addr, err := normalizeAddress(p.data[2:], params)
	if err != nil {
		return message{}, err
	}
	return message{address: addr}, nil
}

func parseTopic(p payload, _ *chaincfg.Params) (message, error) {
	topic := p.rest(2)
	if topic == "" {
		return message{}, errField("topic", "empty")
	}
	return message{topic: topic}, nil
}

func parseTopicText(p payload, _ *chaincfg.Params) (message, error) {
	brk := p.nextBreak(2)
	topic := p.str(2, brk)
	if topic == "" {
		return message{}, errField("topic", "empty")
	}
	return message{topic: topic, text: p.text(brk)}, nil
}

func parseGeoText(p payload, _ *chaincfg.Params) (message, error) {
	brk := p.nextBreak(2)
	geo := p.str(2, brk)
	if geo == "" {
		return message{}, errField("geohash", "empty")
	}
	return message{geo: geo, text: p.text(brk)}, nil
}

func parsePoll(p payload, _ *chaincfg.Params) (message, error) {
	if len(p.data) < 4 {
		return message{}, errField("poll", "missing poll type or option count")
	}
	return message{
		pollType: int(p.data[2]),
		options:  int(p.data[3]),
		text:     p.text(4),
	}, nil
}

// Appliers.

func applyProfile(attr string) func(context.Context, *Decoder, *txn, *message) ([]Event, error) {
	return func(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
		obj := record.NewObject(
			record.P("id", record.String(m.id)),
			record.P("time", record.T(t.at)),
			record.P("user", record.String(t.author)),
			record.P("attr", record.String(attr)),
			record.P("val", record.String(m.text)),
		)
		if _, err := d.store.Put(ctx, schema.Profile, d.net, obj); err != nil {
			return nil, err
		}
		return []Event{{Kind: m.h.name, Type: schema.Profile, ID: m.id}}, nil
	}
}

// writePost puts a post authored by the transaction's author. extra
// fields override the defaults.
func writePost(ctx context.Context, d *Decoder, t *txn, id, kind string, text string, extra ...record.Pair) ([]Event, error) {
	obj := record.NewObject(
		record.P("id", record.String(id)),
		record.P("time", record.T(t.at)),
		record.P("user", record.String(t.author)),
		record.P("msg", record.String(text)),
		record.P("kind", record.String(schema.PostKindPost)),
	)
	for _, p := range extra {
		obj[p.Key] = p.Value
	}
	if _, err := d.store.Put(ctx, schema.Post, d.net, obj); err != nil {
		return nil, err
	}
	return []Event{{Kind: kind, Type: schema.Post, ID: id}}, nil
}

func applyPost(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
	return writePost(ctx, d, t, m.id, m.h.name, m.text)
}

func applyFile(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
	return writePost(ctx, d, t, m.id, m.h.name, m.text,
		record.P("kind", record.String(schema.PostKindFile)))
}

func applyGeoPost(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
	return writePost(ctx, d, t, m.id, m.h.name, m.text,
		record.P("geo", record.String(m.geo)))
}

func applyTopicPost(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
	if err := d.ensureTopic(ctx, m.topic, t.at); err != nil {
		return nil, err
	}
	return writePost(ctx, d, t, m.id, m.h.name, m.text,
		record.P("topic", record.String(m.topic)))
}

// resolveTarget returns the local id of the post m refers to, creating a
// placeholder when neither byte order is known.
func resolveTarget(ctx context.Context, d *Decoder, m *message) (string, error) {
	res, err := d.store.ResolveOrCreate(ctx, schema.Post, d.net, m.target...)
	if err != nil {
		return "", err
	}
	return res.LocalID, nil
}

func applyReply(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
	target, err := resolveTarget(ctx, d, m)
	if err != nil {
		return nil, err
	}
	return writePost(ctx, d, t, m.id, m.h.name, m.text,
		record.P("reply", record.String(target)))
}

func applyShare(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
	target, err := resolveTarget(ctx, d, m)
	if err != nil {
		return nil, err
	}
	return writePost(ctx, d, t, m.id, m.h.name, m.text,
		record.P("share", record.String(target)))
}

func applyPoll(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
	return writePost(ctx, d, t, m.id, m.h.name, m.text,
		record.P("kind", record.String(schema.PostKindPoll)),
		record.P("poll_type", record.Int(m.pollType)),
		record.P("options", record.Int(m.options)),
	)
}

func applyPollOption(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
	poll, err := resolveTarget(ctx, d, m)
	if err != nil {
		return nil, err
	}
	return writePost(ctx, d, t, m.id, m.h.name, m.text,
		record.P("kind", record.String(schema.PostKindOption)),
		record.P("reply", record.String(poll)),
	)
}

// applyVote records a vote on a poll. A comment becomes a reply post with
// the same local id, linked from the vote.
func applyVote(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
	poll, err := resolveTarget(ctx, d, m)
	if err != nil {
		return nil, err
	}

	var comment []Event
	if m.text != "" {
		comment, err = writePost(ctx, d, t, m.id, "vote-comment", m.text,
			record.P("reply", record.String(poll)))
		if err != nil {
			return nil, err
		}
	}

	obj := opinionObj(m.id, t, schema.HowVote, record.Ref{Type: string(schema.Post), ID: poll}, 1)
	if len(comment) > 0 {
		obj["link"] = record.Ref{Type: string(schema.Post), ID: m.id}
	}
	if _, err := d.store.Put(ctx, schema.Opinion, d.net, obj); err != nil {
		return nil, err
	}
	return append([]Event{{Kind: m.h.name, Type: schema.Opinion, ID: m.id}}, comment...), nil
}

// applyLike records a like, valued by the payment it carries. For a known
// post only payments to its author count; for an unknown one every
// payment of the transaction does.
func applyLike(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
	res, err := d.store.Find(ctx, schema.Post, d.net, m.target...)
	var sat int64
	switch {
	case err == nil && res.Resolved():
		author, err := d.postAuthor(ctx, res.LocalID)
		if err != nil {
			return nil, err
		}
		sat = t.payments.take(author)
	case err == nil || errors.Is(err, store.ErrNotFound):
		if err != nil {
			if res, err = d.store.ResolveOrCreate(ctx, schema.Post, d.net, m.target...); err != nil {
				return nil, err
			}
		}
		sat = t.payments.takeAll()
	default:
		return nil, err
	}

	value := 1.0
	if sat > 0 {
		value = d.amount(sat)
	}
	obj := opinionObj(m.id, t, schema.HowLike, record.Ref{Type: string(schema.Post), ID: res.LocalID}, value)
	if sat > 0 {
		obj["unit"] = record.String(d.unit)
	}
	if _, err := d.store.Put(ctx, schema.Opinion, d.net, obj); err != nil {
		return nil, err
	}
	return []Event{{Kind: m.h.name, Type: schema.Opinion, ID: m.id}}, nil
}

func applyFollow(value float64) func(context.Context, *Decoder, *txn, *message) ([]Event, error) {
	return func(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
		if err := d.ensureUser(ctx, m.address, t.at); err != nil {
			return nil, err
		}
		obj := opinionObj(m.id, t, schema.HowFollow, record.Ref{Type: string(schema.User), ID: m.address}, value)
		if _, err := d.store.Put(ctx, schema.Opinion, d.net, obj); err != nil {
			return nil, err
		}
		return []Event{{Kind: m.h.name, Type: schema.Opinion, ID: m.id}}, nil
	}
}

func applyTopicFollow(value float64) func(context.Context, *Decoder, *txn, *message) ([]Event, error) {
	return func(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error) {
		if err := d.ensureTopic(ctx, m.topic, t.at); err != nil {
			return nil, err
		}
		obj := opinionObj(m.id, t, schema.HowFollow, record.Ref{Type: string(schema.Topic), ID: m.topic}, value)
		if _, err := d.store.Put(ctx, schema.Opinion, d.net, obj); err != nil {
			return nil, err
		}
		return []Event{{Kind: m.h.name, Type: schema.Opinion, ID: m.id}}, nil
	}
}

func opinionObj(id string, t *txn, how string, what record.Ref, value float64) record.Object {
	return record.NewObject(
		record.P("id", record.String(id)),
		record.P("time", record.T(t.at)),
		record.P("user", record.String(t.author)),
		record.P("what", what),
		record.P("how", record.String(how)),
		record.P("value", record.Float(value)),
	)
}
