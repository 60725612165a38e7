// Package session runs one connection on top of the protocol packages.
//
// A Conn performs the handshake for its role, then exchanges chunked
// messages. Protocol control messages from the peer are applied to the
// connection's chunk state as they arrive: chunk size, abort, window and
// peer bandwidth. Acknowledgements are sent once a window of bytes has been
// received, and ping requests are answered before the event is handed to
// the caller.
//
// Dial and Listen add dial retry with backoff and optional TLS around the
// raw TCP connection.
package session
