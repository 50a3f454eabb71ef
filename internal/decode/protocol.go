package decode

import (
	"context"
	"slices"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/roach88/metashare/internal/schema"
)

// Prefix is the first data byte of every protocol message.
const Prefix byte = 0x6d

// DefaultReserved is the lowest kind code left to future protocol
// revisions. Messages at or above it are ignored.
const DefaultReserved byte = 0x30

// Kind codes of protocol version 1.
const (
	KindName          byte = 0x01
	KindPost          byte = 0x02
	KindReply         byte = 0x03
	KindLike          byte = 0x04
	KindAbout         byte = 0x05
	KindFollow        byte = 0x06
	KindUnfollow      byte = 0x07
	KindPicture       byte = 0x0a
	KindShare         byte = 0x0b
	KindTopicPost     byte = 0x0c
	KindTopicFollow   byte = 0x0d
	KindTopicUnfollow byte = 0x0e
	KindPollCreate    byte = 0x10
	KindPollOption    byte = 0x13
	KindPollVote      byte = 0x14
	KindPaidSend      byte = 0x24
	KindGeoPost       byte = 0x26
	KindFile          byte = 0x27
)

// Protocol is a versioned dispatch table from kind code to handler.
type Protocol struct {
	Version  int
	Prefix   byte
	Reserved byte

	handlers map[byte]handler
}

// handler parses one message kind and applies it to the store. parse
// must not have side effects.
type handler struct {
	name  string
	parse func(p payload, params *chaincfg.Params) (message, error)
	apply func(ctx context.Context, d *Decoder, t *txn, m *message) ([]Event, error)
}

// V1 returns the version 1 table with the default reserved threshold.
func V1() *Protocol {
	return &Protocol{
		Version:  1,
		Prefix:   Prefix,
		Reserved: DefaultReserved,
		handlers: map[byte]handler{
			KindName:          {name: "name", parse: parseRest, apply: applyProfile(schema.AttrName)},
			KindPost:          {name: "post", parse: parseText, apply: applyPost},
			KindReply:         {name: "reply", parse: parseTargetText, apply: applyReply},
			KindLike:          {name: "like", parse: parseTarget, apply: applyLike},
			KindAbout:         {name: "about", parse: parseRest, apply: applyProfile(schema.AttrAbout)},
			KindFollow:        {name: "follow", parse: parseAddress, apply: applyFollow(1)},
			KindUnfollow:      {name: "unfollow", parse: parseAddress, apply: applyFollow(-1)},
			KindPicture:       {name: "picture", parse: parseRest, apply: applyProfile(schema.AttrPicURL)},
			KindShare:         {name: "share", parse: parseTargetText, apply: applyShare},
			KindTopicPost:     {name: "topic-post", parse: parseTopicText, apply: applyTopicPost},
			KindTopicFollow:   {name: "topic-follow", parse: parseTopic, apply: applyTopicFollow(1)},
			KindTopicUnfollow: {name: "topic-unfollow", parse: parseTopic, apply: applyTopicFollow(-1)},
			KindPollCreate:    {name: "poll", parse: parsePoll, apply: applyPoll},
			KindPollOption:    {name: "poll-option", parse: parseTargetText, apply: applyPollOption},
			KindPollVote:      {name: "vote", parse: parseTargetText, apply: applyVote},
			KindPaidSend:      {name: "paid-send", parse: parseText, apply: applyPost},
			KindGeoPost:       {name: "geo-post", parse: parseGeoText, apply: applyGeoPost},
			KindFile:          {name: "file", parse: parseText, apply: applyFile},
		},
	}
}

// WithReserved returns a copy of p that ignores kinds at or above code.
func (p *Protocol) WithReserved(code byte) *Protocol {
	cp := *p
	cp.Reserved = code
	return &cp
}

// Name returns the name of a kind code.
func (p *Protocol) Name(code byte) (string, bool) {
	h, ok := p.handlers[code]
	return h.name, ok
}

// Codes returns the handled kind codes in ascending order.
func (p *Protocol) Codes() []byte {
	codes := make([]byte, 0, len(p.handlers))
	for c := range p.handlers {
		codes = append(codes, c)
	}
	slices.Sort(codes)
	return codes
}

// denied lists historical transactions that match the prefix but cannot
// be decoded meaningfully. They are skipped before anything else.
var denied = map[string]struct{}{
	// unfollow carrying another protocol's text
	"06c9f9c14e009e946611d1ca84e64b63823e2f7500f345c3ea3a9514ec99c403": {},
	// truncated binary address
	"54b06848695ccab784425d584195cb6d41a28147e5feb5f3f2cc8f70ca688689": {},
	// advert posted with the unfollow code
	"7e0fd53df0236031511bd8cbc37967c6b416566da7b64ccf545df5d255c262c6": {},
	// tips with an empty post reference
	"455a010d45f2126965abe5e1d5f7f2030753f37721ca1bf242e0040a8b55b8c4": {},
	"53aa3365c521e64aeee4522f8347772e26886e9a190cda0ad12ea071abef5216": {},
	// like of a txid two bytes short
	"8ca96457d42e47538a40c821b6c483577bc2629c76f7f9601d393e00522c7d62": {},
}

// Denied reports whether txid is on the deny-list.
func Denied(txid string) bool {
	_, ok := denied[txid]
	return ok
}
