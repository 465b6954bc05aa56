// ABOUTME: Connection and authentication state machines for the MCP client
// ABOUTME: Also defines BackendTier, the tag describing which backend served a call
package models

import "time"

// ConnectionState is the lifecycle state of the push transport connection
type ConnectionState string

const (
	ConnDisconnected ConnectionState = "disconnected"
	ConnConnecting   ConnectionState = "connecting"
	ConnConnected    ConnectionState = "connected"
	ConnError        ConnectionState = "error"
	ConnOffline      ConnectionState = "offline"
)

// AuthState is the OAuth handshake state, independent of ConnectionState
type AuthState string

const (
	AuthUnauthenticated AuthState = "unauthenticated"
	AuthAuthenticating  AuthState = "authenticating"
	AuthAuthenticated   AuthState = "authenticated"
	AuthError           AuthState = "error"
)

// BackendTier identifies which backend actually fulfilled an operation
type BackendTier string

const (
	TierMCP     BackendTier = "mcp"
	TierProxy   BackendTier = "proxy"
	TierOffline BackendTier = "offline"
)

// Status is a snapshot of both state machines, handed to observers
type Status struct {
	Connection    ConnectionState `json:"connection"`
	Auth          AuthState       `json:"auth"`
	OfflineReason string          `json:"offline_reason,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	Since         time.Time       `json:"since"`
}

// Ready reports whether the MCP tier can serve requests
func (s Status) Ready() bool {
	return s.Connection == ConnConnected && s.Auth == AuthAuthenticated
}

// AuthMessage is the result delivered by the OAuth popup or by the push transport
type AuthMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	State   string `json:"state,omitempty"`
}

// AuthMessageType is the message type the OAuth callback page posts back
const AuthMessageType = "notion_auth"
