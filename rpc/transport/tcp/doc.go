// Package tcp implements the tcp connectors for respkv clients and servers.
//
// Both connectors apply the options from common.TCPConf and common.SocketConf
// (TCP_NODELAY, socket buffer sizes, keep-alive and linger). Pipelines and
// transactions already batch their writes into a single flush, so enabling
// TCP_NODELAY is recommended.
package tcp
