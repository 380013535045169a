// Package transport defines the byte-stream contract a device talks over, and the
// serial, TCP, WebSocket and in-memory implementations of it.
//
// A transport delivers incoming bytes as a multicast sequence of chunks; chunk
// boundaries carry no meaning. Writes are raw bytes. Framing, request/response
// correlation and serialization of writes belong to the device layer.
//
// Subscribers of Subscribe must keep draining their channel: the reader blocks on a
// full subscriber so that no byte is ever lost or reordered.
package transport
