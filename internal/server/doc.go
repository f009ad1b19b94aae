// Package server implements the HTTP server using Echo framework.
//
// Routes: account and session lifecycle operations (REST), event streams
// (WebSocket), health and metrics endpoints.
// Handlers split by domain: handlers_accounts.go, handlers_sessions.go,
// handlers_stream.go, handlers_health.go.
package server
