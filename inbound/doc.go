// Package inbound ingests externally pushed webhook payloads: token
// authentication, durable raw-payload logging, dot-path field mapping, and
// dispatch to a fixed catalog of typed domain actions.
package inbound
