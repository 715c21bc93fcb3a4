// Package verification is the ledger of short-lived, single-use numeric
// codes that prove ownership of an email address.
//
// # Redemption
//
// [Ledger.Redeem] first looks for a live record matching the code. When
// none matches it loads the latest record for the address so the failure
// is attributed precisely (used, expired, or wrong code) and counted
// against that record's attempt budget. A record that reaches its cap is
// blocked and refuses even the correct code until it is reissued.
//
// # What this package must NOT do
//
//   - Know what a code verifies. The subject reference is opaque here.
//   - Send email.
package verification
