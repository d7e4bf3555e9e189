// Package cmd implements the command-line interface of respkv. It provides a
// hierarchical command structure with operations for running the development
// server and interacting with it (or any RESP server) as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (get, set, del, tx, perf, etc.)
//   - lock: Commands for locking operations (acquire, release)
//   - serve: Commands for starting and configuring the development server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set with environment variables, the format is
// RESPKV_<flag> (e.g. RESPKV_LOG_LEVEL=debug). Env files named .env and
// .env.local in the working directory are loaded as well.
//
// See respkv -help for a list of all commands.
package cmd
