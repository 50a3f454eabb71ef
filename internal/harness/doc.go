// Package harness runs decoder conformance scenarios.
//
// A scenario builds a small chain from named transactions, decodes it into
// a fresh in-memory store, and checks the decode trace and the resulting
// items.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: reply_before_target
//	description: "A reply to an unseen post leaves a placeholder"
//	blocks:
//	  - txs:
//	      - name: reply
//	        from: bob
//	        outputs:
//	          - memo: reply
//	            fields: [{txid: post}, {text: "first!"}]
//	  - txs:
//	      - name: post
//	        from: alice
//	        outputs:
//	          - memo: post
//	            fields: [{text: "hello"}]
//	pending: []
//	assertions:
//	  - type: item
//	    item: post
//	    id: "{tx:reply}"
//	    expect: { reply: "{tx:post}" }
//
// Fields refer to other transactions and keys by name. Ids and expected
// values in assertions may use {tx:name}, {txrev:name} and {addr:name}.
//
// # Assertion Types
//
//   - event_contains: the transaction produced an event of the kind
//   - event_order: first events of each kind appear in order
//   - event_count: number of events of a kind, optionally for one tx
//   - item: the item exists and its fields include the expected values
//   - item_count: number of items of a type, placeholders included
//   - placeholder: the item exists without content
//   - absent: no item with the id exists
//   - skipped, failed: the skip reason or error code of a transaction
//
// # Deterministic Testing
//
// Keys derive from their names and block times come from
// testutil.BlockClock, so every run produces the same transactions and
// the same trace. Golden snapshots replace ids and addresses with their
// symbolic names.
package harness
