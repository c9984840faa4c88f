// Package catalog holds the in-memory data model shared by every migration
// stage: table identities, tabular frames, crosswalk field mappings, surrogate
// lookups and the per-table TableEntry records.
//
// A Catalog is a flat registry keyed by (schema, table). It lives for one
// migration run and is mutated in place by the staging, correction and key
// resolution stages. It is not safe for concurrent use.
package catalog
