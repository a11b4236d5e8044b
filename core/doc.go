// Package core contains the canonical webhook domain contracts and entities:
// endpoints, delivery attempts, dead letters, inbound tokens, payload signing,
// and the store interfaces every adapter implements. Lower-level adapters must
// depend on this package; core must not depend on transport-specific adapters.
package core
