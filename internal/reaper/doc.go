// Package reaper implements the coordination core of the replica reaper:
// claiming bounded batches of catalog rows under a deletion lease, driving
// physical deletion chunk by chunk, extending leases on long-running batches,
// and committing successful deletions back to the catalog.
//
// Many reaper processes run against the same catalog with no lock manager.
// Safety rests on a single invariant: a replica is claimed by transitioning
// its row to BEING_DELETED with a fresh timestamp, and only rows whose
// timestamp is older than the configured delay may be claimed away from
// another worker. A crashed worker needs no cleanup; its claims simply age
// out and become claimable again.
//
// The four components are independently constructible and testable:
//
//   - Selector claims a batch of eligible rows for one RSE.
//   - Worker walks the batch in sub-chunks, invoking the physical deleter
//     and accumulating per-replica outcomes.
//   - Refresher restamps still-unresolved rows once the batch has consumed
//     a configured fraction of the lease, so other workers do not reclaim
//     them mid-flight.
//   - Committer removes successfully deleted rows from the catalog, either
//     all at once after the batch (deferred) or in fixed-size slices as
//     successes accumulate (immediate).
package reaper
