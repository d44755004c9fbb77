// Package engine executes the mutating WebDAV methods (COPY, MOVE, MKCOL,
// PUT, DELETE) and the lock methods against the shares of a registry.
//
// Every mutating operation runs the same state machine:
//
//	Init -> ResolveSource -> ResolveDestination -> AcquireLock -> Plan -> Execute -> Finalize
//
// Finalize always releases the lock grant, including when Execute panics or
// the request context is cancelled.
//
// COPY and MOVE drive a TargetActions strategy chosen per request:
//
//   - fast: source and destination live in the same physical store and the
//     engine runs in "fastest" mode. Native store copy and move are used
//     where the backend has them.
//   - generic: always available. Document bytes go through the adaptive
//     stream copier.
//   - remote: the destination is on another server and a
//     RemoteActionsFactory accepted it.
//
// Node failures during a recursive walk are recorded as Outcomes and do not
// stop the walk. Aggregate turns the outcomes into one HTTP status.
//
// Import graph: errors <- store <- lock <- engine <- webdav
package engine
