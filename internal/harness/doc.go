// Package harness runs simulation scenarios and checks their outcome.
//
// A scenario names a registered program, an optional tuning table, the
// controls and signals to start from, operator events during the run and
// the assertions to evaluate afterwards.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: be13_operating
//	description: "Reactor burns fuel while cooling keeps up"
//	program: be13
//	tuning: tunings/hot.cue        # optional, relative to the scenario file
//	ticks: 600
//	controls:
//	  storage-matter: { releasedMatterPerTick: 120 }
//	signals:
//	  lockdown: 0
//	events:
//	  - at: 300
//	    signals: { silentRunning: 1 }
//	assertions:
//	  - type: final_state
//	    machine: storage-matter
//	    property: matter
//	    max: 99999999
//	  - type: conservation
//	  - type: deterministic
//
// # Assertion Types
//
//   - final_state: a machine property (or signal) equals expect within
//     tolerance, or lies within [min, max]
//   - grant: the grant to requester from source at a tick equals expect
//   - conservation: no source ever grants more than it had available
//   - deterministic: a second run from the same start yields the same
//     final digest
//   - error: the run fails with the given wiring error code
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory ledger with a fixed run
// ID, so its final state and digest are reproducible and can be compared
// against golden files with RunWithGolden.
package harness
