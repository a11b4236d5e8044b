// Package queue provides durable retry scheduling for webhook redelivery,
// backed by a Redis sorted set.
package queue
