// Package resp implements the RESP2 wire format spoken between respkv
// clients and servers (the redis serialization protocol).
//
// The package is deliberately small and allocation aware:
//
//   - Encoding uses append-style helpers (AppendCommand, AppendStatus,
//     AppendInt, ...) that write into a caller owned buffer. The client
//     collects a whole pipeline in one buffer before it touches the socket.
//
//   - Decoding is done by a Reader on top of a bufio.Reader. Every read method
//     consumes exactly one frame, which is what the transactional pipeline
//     relies on: replies are matched to commands purely by their position in
//     the stream.
//
// Error replies (-ERR ...) are returned as ServerError. They consume one frame,
// so the stream stays usable. A ProtocolError means the stream is corrupt.
package resp
