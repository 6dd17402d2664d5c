// Package inventory syncs a network inventory snapshot into the inventory database.
//
// The snapshot (YAML or JSON, from a file or object storage) is loaded by
// SnapshotAdapter; the database side is the generic binding adapter over the models
// in the models subpackage. Service runs load, diff and sync through core/reconcile,
// records every run as a SyncRun and optionally uploads the run report.
//
// # Record types
//
//   - tenant, tag, namespace: plain named objects
//   - location: foreign key to tenant
//   - device: foreign keys to location and tenant, tags (many-to-many), custom serial,
//     interface children
//   - interface: child of device, identified by name and device
//   - prefix: identified by network and namespace, custom vlan_group
//   - ip_address: identified by address and namespace, assigned to an interface
//     through the interface_ip_addresses relationship
//
// # Routes
//
//	POST /sync/inventory       run a sync (dry_run, continue_on_failure, skip_unmatched_dst, log_unchanged, source, job)
//	GET  /sync/inventory/diff  pending diff
//	GET  /sync/runs            recent runs
//	GET  /sync/runs/:id        one run with its diff
package inventory
