// Package aggregates contains infrastructure implementations of domain
// aggregate contracts.
//
// Implementations compose table-level repos from internal/data/repos and
// own transaction boundaries for invariant-critical write operations. The
// ledger aggregate couples account mutation and outbox event persistence
// inside one transaction; that coupling is the correctness core of the
// whole service.
package aggregates
