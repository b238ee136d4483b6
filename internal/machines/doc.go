// Package machines implements the BE13 reactor and water plant as sim
// components.
//
// Each machine reads its constants from a compiler.Table at construction
// and fails fast when a value is missing. After construction a machine is
// immutable; all mutable quantities live in sim.State.
//
// Registration order matters because requests on the same source at the
// same priority are served in registration order. BE13 registers the
// machines in the order listed by Order.
//
// Rates that the tuning table states per hour (pump production, drinking
// water demand, treatment throughput) are divided by HourToTick.
package machines
