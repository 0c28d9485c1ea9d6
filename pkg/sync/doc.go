/*
The sync package keeps a workspace and its mirror in sync in both directions.

Two watchers feed the Engine: one on the workspace (the source) and one on
the mirror. Each change is applied to the opposite tree, with two guards:

 1. Exclusion rules. Excluded source paths are never watched. Writes to
    excluded paths in the mirror never reach the source; in strict mode they
    are deleted from the mirror as soon as they're seen.
 2. Echo suppression. Before the engine writes or deletes a path it marks it
    as pending on the destination side. The first notification for that path
    from the destination's watcher consumes the mark instead of being
    propagated back.

Marks are a heuristic. Every operation is also idempotent: a copy onto an
identical file and a delete of a missing path are no-ops, so an echo that
slips past the marks dies after one round trip.
*/
package sync
