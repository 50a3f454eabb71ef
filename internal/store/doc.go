// Package store provides the SQLite-backed entity store.
//
// The store separates identity from content:
//   - items: one row per (network, type, local id). The content column
//     points at the Detail row holding the fields, or is NULL for a
//     placeholder created by a forward reference.
//   - detail tables (nets, users, profs, posts, topics, opins): one row per
//     piece of content, keyed by the id of the item that first resolved it.
//
// A placeholder is resolved in place: its Detail row takes the
// placeholder's own id, so references recorded against the placeholder
// become valid without rewriting the referencing rows. A mirror is a
// second item pointing at an existing Detail row under another network.
//
// Reference columns in detail tables store content ids. Reads translate
// them back into the local ids of the requesting network, dropping
// references whose target has no item in that network.
//
// # Guarantees
//
//   - Every Put, Mirror and ResolveOrCreate runs in one transaction and
//     either commits fully or leaves no trace.
//   - (network, type, local id) is unique, and a network holds at most one
//     item per content id.
//   - Resolved content never changes. A second Put with different fields
//     fails with CONFLICTING_DUPLICATE; only the custom blob may change.
//   - Reads order by item id, which is creation order.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON, with the items.net key deferred so a network item
//     can own itself
package store
