// Package outbound fans domain events out to subscribed webhook endpoints:
// signed envelopes, circuit-breaker protected HTTP calls, a bounded backoff
// retry pipeline, and dead-lettering for exhausted deliveries.
package outbound
