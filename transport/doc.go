// Package transport carries webhook traffic over HTTP: an outbound REST
// delivery client and the inbound ingestion handler.
package transport
