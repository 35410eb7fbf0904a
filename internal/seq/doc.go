// Package seq provides the core record types for tracked sequences.
//
// This package contains type definitions and the priority policy only.
// All other internal packages import seq; seq imports nothing internal.
// This keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Values are arbitrary precision (math/big), serialized as JSON numbers
//   - Terminal statuses are immutable once set (enforced by TransitionTo)
//   - Priority is a derived key: lower means scheduled sooner
//   - All JSON tags use snake_case
package seq
