// Package common provides data structures and utilities shared by the
// client, the server and the command line tool.
//
// The package focuses on:
//   - Configuration structures for client connections and the server
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - ClientConfig: Configuration of one client connection (endpoint, socket
//     buffers, tcp options and the read/write timeout used for every blocking
//     call on the connection).
//
//   - ServerConfig: Configuration of the development server, including the
//     listen endpoint, idle timeout and the optional metrics endpoint.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger factory so that every package logger shares one format.
package common
