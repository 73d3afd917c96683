package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ConnectionState is the normalized answer to a status query. The adapter
// never lets a provider failure escape a status check; it degrades to
// {Connected: false, Status: "error"} instead so pollers keep running.
type ConnectionState struct {
	Connected bool   `json:"connected"`
	Status    string `json:"status"`
}

// Gateway is the four-call contract to the external WhatsApp provider.
// DeleteInstance is best-effort: failures are logged inside the adapter,
// never returned, so disconnect flows always succeed.
type Gateway interface {
	CreateInstance(ctx context.Context, sessionID string) (string, error)
	GetQRCode(ctx context.Context, instanceName string) (string, error)
	CheckStatus(ctx context.Context, instanceName string) (ConnectionState, error)
	DeleteInstance(ctx context.Context, instanceName string)
	SendMessage(ctx context.Context, instanceName, phone, text string) error
}

// ErrNoConnectedInstance is returned by message sends when no instance
// currently reports a connected state.
var ErrNoConnectedInstance = errors.New("no connected whatsapp instance")

// ProviderError wraps a failed call to the provider API.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s failed: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
