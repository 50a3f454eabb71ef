// Package decode turns ledger transactions into store items.
//
// A transaction carries zero or more data outputs. Each output whose
// pushed bytes start with the protocol prefix is one message; its second
// byte selects a handler from the protocol table. Fields are split on the
// boundaries of the original pushes, so free text keeps any byte values.
//
// Decoding runs in two phases. Every message of a transaction is parsed
// first, and a malformed message fails the whole transaction with a
// DecodeError before anything is written. The parsed messages are then
// applied in output order through the Store.
//
// References to other transactions (reply, share, like, poll targets) are
// resolved with Store.ResolveOrCreate against both byte orders of the
// hash, so a target seen later fills the placeholder created now.
//
// Value outputs in the same transaction pay other users. A like consumes
// the payment to the liked post's author, or all payments when the post
// is not known yet. Whatever is left becomes one "pay" opinion per output,
// linked to the first item the transaction produced.
package decode
