// Package syncer replays a ledger into the store, one session per
// network.
//
// A Session walks confirmed blocks from the network's cursor to the tip
// and then the mempool. Transactions decoded from the mempool are kept in
// a seen-set for the life of the session, so the confirmed copy is not
// decoded again. The set is not persisted. A confirmed transaction that an
// earlier process decoded from its mempool conflicts on its own item's
// time and is skipped.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/roach88/metashare/internal/config"
	"github.com/roach88/metashare/internal/decode"
	"github.com/roach88/metashare/internal/ledger"
	"github.com/roach88/metashare/internal/store"
)

// Stats counts what a session has done so far.
type Stats struct {
	Blocks     int `json:"blocks"`
	Txs        int `json:"txs"`
	Pending    int `json:"pending"`
	Events     int `json:"events"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
}

// Session syncs one network. It is not safe for concurrent use.
type Session struct {
	ID string

	store   *store.Store
	reader  ledger.Reader
	net     store.Network
	cfg     config.Network
	dec     *decode.Decoder
	limiter *rate.Limiter
	log     *slog.Logger

	cursor store.Cursor
	saved  store.Cursor
	seen   map[string]struct{}
	stats  Stats
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the parent logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Open starts a session for the network registered under origin. The
// network's stored configuration drives decoding; a network without one
// uses config.Default.
func Open(ctx context.Context, st *store.Store, reader ledger.Reader, origin string, opts ...Option) (*Session, error) {
	net, err := st.NetworkByOrigin(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	cfg := config.Default(origin)
	if len(net.Config) > 0 {
		if cfg, err = config.FromObject(net.Config); err != nil {
			return nil, fmt.Errorf("open session %s: %w", origin, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("open session %s: %w", origin, err)
	}
	params, err := ledger.Params(cfg.Chain)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", origin, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	s := &Session{
		ID:     id.String(),
		store:  st,
		reader: reader,
		net:    net,
		cfg:    cfg,
		log:    slog.Default(),
		cursor: net.Cursor,
		saved:  net.Cursor,
		seen:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("session", s.ID, "network", origin)

	if cfg.BlocksPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.BlocksPerSecond), 1)
	}
	s.dec = decode.New(st, net.ID,
		decode.WithProtocol(decode.V1().WithReserved(byte(cfg.ReservedKind))),
		decode.WithParams(params),
		decode.WithCurrency(cfg.CurrencyUnit, cfg.UnitsPerCurrency),
		decode.WithMaxMessageSize(cfg.MaxMessageSize),
		decode.WithLogger(s.log),
	)

	attrs := []any{"block", net.Cursor.Block, "height", net.Cursor.Height}
	if last, err := st.GetLastFrom(ctx, net.ID); err == nil {
		attrs = append(attrs, "last_type", last.Type, "last_id", last.LocalID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("open session %s: %w", origin, err)
	}
	s.log.Info("session opened", attrs...)
	return s, nil
}

// Network returns the network being synced.
func (s *Session) Network() store.Network { return s.net }

// Cursor returns the current position, which may be ahead of the saved
// one.
func (s *Session) Cursor() store.Cursor { return s.cursor }

// Stats returns the counters of the session.
func (s *Session) Stats() Stats { return s.stats }

// Run syncs confirmed blocks up to the tip and then the mempool. It may
// be called again to pick up new blocks; the mempool seen-set carries
// over between calls.
//
// Decode errors are logged and skipped. Store errors abort the run after
// the cursor has been saved.
func (s *Session) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	if err := s.syncBlocks(ctx); err != nil {
		return s.stats, err
	}
	if err := s.syncPending(ctx); err != nil {
		return s.stats, err
	}
	s.log.Info("sync finished",
		"blocks", s.stats.Blocks,
		"txs", s.stats.Txs,
		"events", s.stats.Events,
		"height", s.cursor.Height,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return s.stats, nil
}

func (s *Session) syncBlocks(ctx context.Context) (err error) {
	// Without a cursor, replay includes the start block itself.
	walk := func(visit func(*ledger.Block) error) error {
		return s.reader.Blocks(ctx, s.cursor.Block, visit)
	}
	if s.cursor.Block == "" && s.cfg.StartBlock != "" {
		walk = func(visit func(*ledger.Block) error) error {
			return s.reader.BlocksFrom(ctx, s.cfg.StartBlock, visit)
		}
	}
	resume := s.cursor.Resume

	defer func() {
		// Keep whatever was finished, even when the context is gone.
		if saveErr := s.save(context.WithoutCancel(ctx)); saveErr != nil && err == nil {
			err = saveErr
		}
	}()

	return walk(func(b *ledger.Block) error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		s.stats.Blocks++

		first := 0
		if resume != nil && resume.Block == b.Hash {
			first = resume.Index
		}
		resume = nil

		found := false
		// A block holding only its reward transaction has nothing to decode.
		if len(b.Txs) > 1 {
			for i := first; i < len(b.Txs); i++ {
				if err := ctx.Err(); err != nil {
					s.cursor.Resume = &store.Resume{Block: b.Hash, Index: i}
					return err
				}
				n, err := s.decodeConfirmed(ctx, b.Txs[i], b.Time)
				if err != nil {
					s.cursor.Resume = &store.Resume{Block: b.Hash, Index: i}
					return err
				}
				found = found || n > 0
			}
		}

		s.cursor = store.Cursor{Block: b.Hash, Height: b.Height}
		s.log.Debug("block synced", "block", b.Hash, "height", b.Height, "txs", len(b.Txs))
		if found || (s.cfg.SaveEvery > 0 && b.Height%int64(s.cfg.SaveEvery) == 0) {
			return s.save(ctx)
		}
		return nil
	})
}

func (s *Session) syncPending(ctx context.Context) error {
	pending, err := s.reader.Pending(ctx)
	if err != nil {
		return fmt.Errorf("read mempool: %w", err)
	}
	for _, p := range pending {
		if _, ok := s.seen[p.Tx.ID]; ok {
			continue
		}
		if _, err := s.decode(ctx, p.Tx, p.Seen); err != nil {
			return err
		}
		s.seen[p.Tx.ID] = struct{}{}
		s.stats.Pending++
	}
	return nil
}

// decodeConfirmed decodes a block transaction unless this session already
// decoded it from the mempool.
func (s *Session) decodeConfirmed(ctx context.Context, tx *ledger.Tx, at time.Time) (int, error) {
	if _, ok := s.seen[tx.ID]; ok {
		delete(s.seen, tx.ID)
		s.stats.Duplicates++
		return 0, nil
	}
	return s.decode(ctx, tx, at)
}

// decode returns the number of events tx produced. Only store failures
// are returned as errors.
func (s *Session) decode(ctx context.Context, tx *ledger.Tx, at time.Time) (int, error) {
	s.stats.Txs++
	res, err := s.dec.Decode(ctx, tx, at)
	switch {
	case err == nil:
		s.stats.Events += len(res.Events)
		return len(res.Events), nil
	case decode.IsDecodeError(err):
		s.stats.Failed++
		s.log.Warn("decode failed", "tx", tx.ID, "error", err)
		return 0, nil
	case alreadyDecoded(err, tx.ID):
		s.stats.Duplicates++
		s.log.Info("tx already decoded", "tx", tx.ID)
		return 0, nil
	default:
		s.log.Error("sync aborted", "tx", tx.ID, "error", err)
		return 0, err
	}
}

// alreadyDecoded reports a conflict on an item tx itself produced, which
// means an earlier run decoded it with a different time.
func alreadyDecoded(err error, txID string) bool {
	var ie *store.IntegrityError
	if !errors.As(err, &ie) || ie.Code != store.ErrCodeConflictingDuplicate {
		return false
	}
	return ie.ID == txID || strings.HasPrefix(ie.ID, txID+":")
}

// save persists the cursor if it moved.
func (s *Session) save(ctx context.Context) error {
	if cursorEqual(s.cursor, s.saved) {
		return nil
	}
	if err := s.store.SaveCursor(ctx, s.net.ID, s.cursor); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	s.saved = s.cursor
	return nil
}

func cursorEqual(a, b store.Cursor) bool {
	if a.Block != b.Block || a.Height != b.Height {
		return false
	}
	if a.Resume == nil || b.Resume == nil {
		return a.Resume == b.Resume
	}
	return *a.Resume == *b.Resume
}
