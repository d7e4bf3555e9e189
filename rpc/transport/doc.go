// Package transport defines how respkv clients and the server obtain their
// byte streams. The RESP protocol itself is connection oriented and strictly
// ordered, so a transport only has to provide a net.Conn and apply its
// socket options; framing is done by the resp package.
//
// Key Components:
//
//   - IClientConnector: Dials an endpoint and tunes the resulting connection.
//
//   - IServerConnector: Creates the listener and tunes accepted connections.
//
// Implementations live in the tcp and unix sub packages.
package transport
