// Package metering contains the usage-metering and billing core: the plan
// catalog, cost calculator, per-account usage ledger, and wallet, together
// with the repository contracts their persistence must satisfy.
//
// The aggregates in this package hold the money and quota invariants of the
// system: wallet balances never go negative, usage counters never decrease
// within a billing period, and period rollovers reset counters exactly once.
// All mutation flows through the application layer's transaction manager,
// which serializes concurrent writers per account.
package metering
