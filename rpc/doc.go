// Package rpc provides the communication layer between respkv clients and
// RESP servers.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures and logging shared by the client,
//     the server and the command line tool.
//
//   - resp: Encoding of commands and decoding of replies in the RESP2 wire
//     format.
//
//   - transport: Network communication abstractions with pluggable
//     implementations (TCP, Unix sockets).
//
//   - client: The client connection with pipelines and MULTI/EXEC
//     transactions, plus typed commands on top of it.
//
//   - server: A single node RESP server for development and tests.
package rpc
