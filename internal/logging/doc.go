// Package logging provides structured slog logging for UIdex with
// size-based file rotation under ~/.uidex/logs/.
//
// When serving MCP over stdio, stdout carries JSON-RPC exclusively, so
// server logs go to the rotating file and never to stdout or stderr.
package logging
