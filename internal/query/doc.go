// Package query builds read queries against the tick ledger.
//
// A query is a Select over one ledger table with an optional predicate
// tree. Compile turns it into parameterized SQL for SQLite.
//
// # Critical Patterns
//
// Deterministic results: every compiled query carries the table's stable
// ORDER BY. Ticks order by tick; grants and signal writes by tick then
// seq; runs by seq then id. There is no way to compile a query without it.
//
// Parameterized values: predicate values are always bound with ?
// placeholders, never interpolated.
//
// Whitelisted identifiers: tables and columns are checked against the
// ledger schema before compilation, so identifiers coming from CLI flags
// cannot inject SQL.
package query
