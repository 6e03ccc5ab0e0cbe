// Package models defines the core domain models for bowltab.
//
// # Models
//
//   - User: a Telegram-backed account with a local role
//   - Session: an evening of shared bowls; at most one active at a time
//   - Bowl: a single shared bowl with an integer cost and its participants
//   - AuditEntry: one record of a mutating admin action
//
// # Design Principles
//
//  1. **Whole-aggregate sessions**: a Session embeds its bowls and
//     participants and is persisted as one unit, guarded by a version
//     counter for optimistic concurrency.
//  2. **Integer money**: bowl costs and computed shares are integers in the
//     smallest currency unit. No floats anywhere near money.
//  3. **Avoid circular references**: relationships use ID strings, never
//     pointers between aggregates.
package models
