// Package sim implements the tick engine: a flat registry of components that
// exchange scalar quantities once per tick under priority and capacity
// constraints.
//
// # Architecture
//
// A Program is an ordered list of components. Each tick runs three phases:
//
//   - Gather: every component that implements Requester is asked for its
//     input requests, given only its own previous state. The declared outputs
//     of every component are copied from the previous state into a pool.
//   - Resolve: sources are visited in registration order. The requests
//     against one source are stably sorted by descending priority and served
//     greedily: value = min(available, max). The pool is decremented as it
//     goes, so grants never exceed what the source produced.
//   - Update: every component computes its complete next state from its
//     previous state, its resolved input and a read-only view of the signals.
//
// # Critical Patterns
//
// Registration order is significant. It fixes both the order in which
// sources are resolved and the order in which components are updated.
//
// Equal-priority requests are served in insertion order: requester
// registration order first, then position within the requester's request
// list. Two runs of the same program therefore produce identical grants.
//
// Unused output is lost unless the producer asks for it back. The idiom is a
// self-request at ReturnPriority, which is served after every other consumer:
//
//	sim.Request{Source: "tank", Property: "water", As: "unusedWater", Priority: sim.ReturnPriority}
//
// Signals replace shared mutable globals. Components read the values that
// were current when the tick started and publish changes with Step.Emit. The
// writes are applied, in evaluation order, when the tick completes, so no
// component sees another's write during the same tick.
//
// Wiring mistakes (unknown source, undeclared output, output never produced)
// are fatal for the tick and are returned as *WiringError.
package sim
