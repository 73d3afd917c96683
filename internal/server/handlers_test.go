package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wapair/internal/broadcast"
	"wapair/internal/config"
	"wapair/internal/constants"
	"wapair/internal/gateway"
	"wapair/internal/orchestrator"
	"wapair/internal/poller"
	"wapair/internal/registry"
	"wapair/internal/security"
	"wapair/internal/types"
)

// stubGateway answers every provider call locally so handlers can be
// exercised without an Evolution instance.
type stubGateway struct {
	mu        sync.Mutex
	counter   int
	createErr error
	qr        string
	state     gateway.ConnectionState
}

func (g *stubGateway) CreateInstance(ctx context.Context, sessionID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.counter++
	return fmt.Sprintf("wa_%d", g.counter), nil
}

func (g *stubGateway) GetQRCode(ctx context.Context, instanceName string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.qr, nil
}

func (g *stubGateway) CheckStatus(ctx context.Context, instanceName string) (gateway.ConnectionState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Status == "" {
		return gateway.ConnectionState{Connected: false, Status: constants.StatusCreated}, nil
	}
	return g.state, nil
}

func (g *stubGateway) DeleteInstance(ctx context.Context, instanceName string) {}

func (g *stubGateway) SendMessage(ctx context.Context, instanceName, phone, text string) error {
	return nil
}

// newTestServer wires a Server by hand: metric sources are process-global, so
// the production constructor stays out of tests.
func newTestServer(gw gateway.Gateway) *Server {
	cfg := &config.Config{
		QRMaxAttempts:   3,
		QRInterval:      time.Millisecond,
		PollInterval:    5 * time.Millisecond,
		PollDeadline:    time.Second,
		CloseGrace:      time.Millisecond,
		MaxStreamsPerIP: constants.MaxStreamsPerIP,
	}
	store := registry.NewMemoryStore()
	streams := broadcast.New()
	p := poller.New(gw, cfg.PollInterval, cfg.PollDeadline)

	return &Server{
		Cfg:         cfg,
		Store:       store,
		Orch:        orchestrator.New(cfg, store, gw, streams, p, nil),
		Streams:     streams,
		Poller:      p,
		ConnLimiter: security.NewConnectionLimiter(cfg.MaxStreamsPerIP),
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHandleConnect(t *testing.T) {
	s := newTestServer(&stubGateway{})

	req := httptest.NewRequest(http.MethodPost, constants.EndpointConnect,
		strings.NewReader(`{"session_id":"s1"}`))
	rec := httptest.NewRecorder()
	s.HandleConnect(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[types.ConnectResponse](t, rec)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "wa_1", resp.InstanceName)
}

func TestHandleConnectEmptyBody(t *testing.T) {
	s := newTestServer(&stubGateway{})

	req := httptest.NewRequest(http.MethodPost, constants.EndpointConnect, nil)
	rec := httptest.NewRecorder()
	s.HandleConnect(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[types.ConnectResponse](t, rec)
	assert.NotEmpty(t, resp.SessionID)
}

func TestHandleConnectMethodNotAllowed(t *testing.T) {
	s := newTestServer(&stubGateway{})

	req := httptest.NewRequest(http.MethodGet, constants.EndpointConnect, nil)
	rec := httptest.NewRecorder()
	s.HandleConnect(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleConnectProviderDown(t *testing.T) {
	gw := &stubGateway{createErr: &gateway.ProviderError{Op: "POST /instance/create", StatusCode: 503}}
	s := newTestServer(gw)

	req := httptest.NewRequest(http.MethodPost, constants.EndpointConnect, nil)
	rec := httptest.NewRecorder()
	s.HandleConnect(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decodeBody[types.ErrorResponse](t, rec)
	assert.Equal(t, constants.CodeProviderError, resp.Code)
}

func TestHandleStatusNotFound(t *testing.T) {
	s := newTestServer(&stubGateway{})

	req := httptest.NewRequest(http.MethodGet, constants.EndpointStatus+"ghost", nil)
	rec := httptest.NewRecorder()
	s.HandleStatus(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeBody[types.ErrorResponse](t, rec)
	assert.Equal(t, constants.CodeInstanceNotFound, resp.Code)
}

func TestHandleStatus(t *testing.T) {
	gw := &stubGateway{state: gateway.ConnectionState{Connected: true, Status: constants.StatusOpen}}
	s := newTestServer(gw)

	connect := httptest.NewRequest(http.MethodPost, constants.EndpointConnect,
		strings.NewReader(`{"session_id":"s1"}`))
	s.HandleConnect(httptest.NewRecorder(), connect)

	req := httptest.NewRequest(http.MethodGet, constants.EndpointStatus+"s1", nil)
	rec := httptest.NewRecorder()
	s.HandleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[types.StatusResponse](t, rec)
	assert.True(t, resp.Connected)
	assert.Equal(t, constants.StatusOpen, resp.Status)
}

func TestHandleDisconnect(t *testing.T) {
	s := newTestServer(&stubGateway{})

	connect := httptest.NewRequest(http.MethodPost, constants.EndpointConnect,
		strings.NewReader(`{"session_id":"s1"}`))
	s.HandleConnect(httptest.NewRecorder(), connect)

	req := httptest.NewRequest(http.MethodPost, constants.EndpointDisconnect+"s1", nil)
	rec := httptest.NewRecorder()
	s.HandleDisconnect(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[types.DisconnectResponse](t, rec)
	assert.True(t, resp.Success)

	// second disconnect has nothing to tear down
	rec = httptest.NewRecorder()
	s.HandleDisconnect(rec, httptest.NewRequest(http.MethodPost, constants.EndpointDisconnect+"s1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSendNoConnectedInstance(t *testing.T) {
	s := newTestServer(&stubGateway{})

	req := httptest.NewRequest(http.MethodPost, constants.EndpointSend,
		strings.NewReader(`{"phone":"5511999999999","text":"hi"}`))
	rec := httptest.NewRecorder()
	s.HandleSend(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeBody[types.ErrorResponse](t, rec)
	assert.Equal(t, constants.CodeNoConnectedInstance, resp.Code)
}

func TestHandleSendValidation(t *testing.T) {
	s := newTestServer(&stubGateway{})

	req := httptest.NewRequest(http.MethodPost, constants.EndpointSend,
		strings.NewReader(`{"phone":"5511999999999"}`))
	rec := httptest.NewRecorder()
	s.HandleSend(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[types.ErrorResponse](t, rec)
	assert.Equal(t, constants.CodeBadRequest, resp.Code)
}

func TestHandleSend(t *testing.T) {
	s := newTestServer(&stubGateway{})

	connect := httptest.NewRequest(http.MethodPost, constants.EndpointConnect,
		strings.NewReader(`{"session_id":"s1"}`))
	s.HandleConnect(httptest.NewRecorder(), connect)
	name, _ := s.Store.FindInstanceName("s1")
	s.Store.UpdateStatus(name, constants.StatusOpen)

	req := httptest.NewRequest(http.MethodPost, constants.EndpointSend,
		strings.NewReader(`{"phone":"5511999999999","text":"hi"}`))
	rec := httptest.NewRecorder()
	s.HandleSend(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[types.SendResponse](t, rec)
	assert.True(t, resp.Success)
}

// The events endpoint for an unregistered session answers over the stream
// itself: the SSE handshake, one error event, then the stream closes.
func TestHandleEventsUnknownSession(t *testing.T) {
	s := newTestServer(&stubGateway{})

	req := httptest.NewRequest(http.MethodGet, constants.EndpointEvents+"ghost", nil)
	rec := httptest.NewRecorder()
	s.HandleEvents(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, ": connected")
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, constants.CodeInstanceNotFound)
}

func TestHandleEventsMissingSessionID(t *testing.T) {
	s := newTestServer(&stubGateway{})

	req := httptest.NewRequest(http.MethodGet, constants.EndpointEvents, nil)
	rec := httptest.NewRecorder()
	s.HandleEvents(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
