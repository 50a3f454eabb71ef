// Package schema declares the entity types the store knows about.
//
// Every type has an Item envelope (network, local id, content pointer,
// custom blob) and one Detail table holding its fields. The registry in
// this package is the single source of truth for those fields: the store
// builds its SQL from it and checks it against the database when opened,
// so adding a column means adding it here and in schema.sql.
//
// Reference fields name their target type. A reference to Any accepts an
// item of every declared type and is written as a record.Ref.
package schema
