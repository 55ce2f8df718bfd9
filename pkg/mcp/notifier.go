package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// SessionNotifier pushes notifications to connected clients, keyed by work
// session. The serve loop uses it to announce elapsed async waits.
type SessionNotifier interface {
	Notify(ctx context.Context, sessionID string, payload map[string]any) error
}

// MCPNotifier implements SessionNotifier using MCP push notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier that pushes via the MCP server.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to the client tracking the work session.
// Best-effort: returns nil if no client is connected.
func (n *MCPNotifier) Notify(_ context.Context, sessionID string, payload map[string]any) error {
	clientID, ok := n.sessions.ClientFor(sessionID)
	if !ok {
		return nil // no client connected, best-effort
	}
	err := n.mcpServer.SendNotificationToSpecificClient(clientID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Client expired between lookup and send — not an error.
		n.sessions.Remove(clientID)
		return nil
	}
	return err
}

// Sessions exposes the registry so the serve loop can share it.
func (s *WeaveServer) Sessions() *SessionRegistry { return s.sessions }
