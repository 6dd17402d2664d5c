// Package binding maps reconcile records onto relational tables through declared
// field descriptors, and provides a database-backed reconcile adapter.
//
// Each bound Model pairs a record Schema with a table and one Field per identifier
// and attribute. Field kinds:
//
//   - Scalar: a column of the model's table.
//   - ForeignKey: fields named "<slot>__<path>" share one key column. Their values form
//     a lookup dict that must match exactly one related row. A polymorphic slot reads
//     the related type from "<slot>___model".
//   - ManyToMany: a list of identifying dicts written to a join table with replace
//     semantics.
//   - Custom: a key of the JSON custom field column.
//   - Association: rows of the relationship_associations table. Single-valued fields
//     must match at most one row.
//
// Descriptors are validated once by NewRegistry. Loader evaluates them on read and
// CRUD on write, so both directions use the same mapping.
//
// # Usage
//
//	reg, err := binding.NewRegistry(models...)
//	target := binding.NewAdapter("database", db, reg, []string{"tenant", "device"}, log)
//	diff, result, err := reconcile.Run(ctx, source, target, flags)
package binding
