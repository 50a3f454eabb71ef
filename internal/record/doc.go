// Package record defines the field values exchanged with the store.
//
// A record is an Object: a map from field name to Value. The Value types
// are a closed set (Null, String, Int, Float, Bool, Time, Ref, Array,
// Object) so that the store can check every input against the schema
// registry without reflection.
//
// Objects serialize to canonical JSON: keys sorted by UTF-16 code units,
// strings NFC-normalized, no HTML escaping. The custom blob is stored in
// this form, which makes equal blobs byte-identical.
package record
