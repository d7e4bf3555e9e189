// Package unix implements connectors for Unix domain sockets. They are the
// fastest option when client and server run on the same machine.
//
// Key Components:
//
//   - clientConnector: Dials the socket path given as endpoint
//
//   - serverConnector: Removes a stale socket file and listens on the path
package unix
