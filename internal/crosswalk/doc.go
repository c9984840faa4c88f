// Package crosswalk declares, per destination table, how every destination
// field is derived from the legacy source.
//
// Each table is described by a Rule: a pure function returning the table's
// TableRules. Rules are registered by table identity; adding a table means
// registering one more rule, never editing existing ones. Registry.Build
// checks the registered rules against the destination schema and returns a
// Crosswalk, or a RegistryError listing every structural problem found.
package crosswalk
