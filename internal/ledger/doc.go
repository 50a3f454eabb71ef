// Package ledger models the append-only ledger the decoder reads.
//
// Raw transactions are parsed with btcd's wire package. Output scripts
// are split into pushed-data chunks with the txscript tokenizer; the
// decoder relies on the chunk boundaries, not just the concatenated
// bytes. Addresses are derived with btcutil and rendered in legacy
// base58check form.
//
// Reader is the boundary to the ledger. Chain is an in-memory Reader,
// loadable from a YAML dump, used by tests and by the CLI for offline
// replays.
package ledger
