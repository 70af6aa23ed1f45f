// Package banking holds the pure ledger domain: Money, the Account
// aggregate with its transaction history, and the domain events buffered
// for outbox persistence. Nothing in this package touches storage.
package banking
