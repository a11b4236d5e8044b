// Package breaker implements a three-state circuit breaker (closed, open,
// half_open) with consecutive-failure tripping, cooldown-based probing, and
// a registry that shares one breaker per named dependency.
package breaker
