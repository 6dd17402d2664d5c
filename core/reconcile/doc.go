// Package reconcile computes and applies the difference between two snapshots of the
// same typed, identified records.
//
// Each side of a sync is an Adapter that loads its snapshot into a Store. Records are
// declared through a Schema (identifiers, attributes, child types) and indexed by a
// unique id built from their identifier values.
//
// # Flow
//
//  1. LoadAll fills both stores concurrently.
//  2. Differ walks the source top-level types in order and emits one Element per record
//     (create, update, delete, no-change or skip), with child elements nested under
//     their parent.
//  3. Synchronizer applies the Diff to the target. Creates and updates run parents first;
//     deletes are deferred and run leaf types first, children before parents. When the
//     target adapter implements Mutator, every write goes through it.
//
// # Usage Example
//
//	diff, result, err := reconcile.Run(ctx, source, target, cfg.Sync,
//	    reconcile.WithLogger(log),
//	    reconcile.WithRecorder(metrics.NewRecorder(registry)),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Print(diff.String())
//
// Diff.Dict renders the audit report:
//
//	{"device": {"edge-fw": {"+": {"status": "active"}}}}
package reconcile
