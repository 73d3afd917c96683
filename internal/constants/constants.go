package constants

import "time"

// Network defaults
const (
	DefaultHost = "localhost:8080"
	DefaultPort = "8080"
)

// Provider defaults
const (
	DefaultProviderURL    = "http://localhost:8081"
	DefaultInstancePrefix = "wa"
	ProviderTimeout       = 15 * time.Second
)

// Connection lifecycle timing
const (
	DefaultQRMaxAttempts = 20
	DefaultQRInterval    = time.Second
	DefaultPollInterval  = 30 * time.Second
	DefaultPollDeadline  = 5 * time.Minute
	DefaultCloseGrace    = time.Second
)

// Limits
const (
	MaxStreamsPerIP = 10
	MaxBodySize     = 64 * 1024
	RegistryTTL     = 24 * time.Hour
)

// Session statuses as reported by the provider
const (
	StatusCreated  = "created"
	StatusQRIssued = "qr_issued"
	StatusOpen     = "open"
	StatusClosed   = "closed"
	StatusTimeout  = "timeout"
	StatusError    = "error"
)

// Event stream types
const (
	EventQRCode = "qrcode"
	EventStatus = "status"
	EventError  = "error"
)

// Error codes surfaced to clients
const (
	CodeInstanceNotFound    = "INSTANCE_NOT_FOUND"
	CodeQRCodeTimeout       = "QR_CODE_TIMEOUT"
	CodeStatusPollTimeout   = "STATUS_POLL_TIMEOUT"
	CodeProviderError       = "PROVIDER_ERROR"
	CodeNoConnectedInstance = "NO_CONNECTED_INSTANCE"
	CodeBadRequest          = "BAD_REQUEST"
)

// API endpoints
const (
	EndpointConnect    = "/api/connect"
	EndpointEvents     = "/api/events/"
	EndpointStatus     = "/api/status/"
	EndpointDisconnect = "/api/disconnect/"
	EndpointSend       = "/api/send"
	EndpointMetrics    = "/metrics"
)

// Messages
const (
	MsgInvalidJSON      = "Invalid JSON"
	MsgMethodNotAllowed = "Method not allowed"
	MsgSessionNotFound  = "Session not found"
	MsgMissingSessionID = "Missing session id"
	MsgStreamLimit      = "Too many open event streams"
)
