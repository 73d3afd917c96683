package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"wapair/internal/broadcast"
	"wapair/internal/constants"
	"wapair/internal/gateway"
	"wapair/internal/orchestrator"
	"wapair/internal/security"
	"wapair/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxBodySize)

	// an empty body is fine: the session id is generated
	var req types.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, constants.CodeBadRequest, constants.MsgInvalidJSON)
		return
	}

	resp, err := s.Orch.Connect(r.Context(), req.SessionID)
	if err != nil {
		var pe *gateway.ProviderError
		if errors.As(err, &pe) {
			writeError(w, http.StatusBadGateway, constants.CodeProviderError, pe.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, constants.CodeProviderError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleEvents holds the long-lived stream open. It upgrades to WebSocket
// when the client asks for it and falls back to server-sent events.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	sessionID := pathParam(r.URL.Path, constants.EndpointEvents)
	if sessionID == "" {
		http.Error(w, constants.MsgMissingSessionID, http.StatusBadRequest)
		return
	}

	clientIP := security.GetClientIP(r)
	if !s.ConnLimiter.TryConnect(clientIP) {
		http.Error(w, constants.MsgStreamLimit, http.StatusTooManyRequests)
		return
	}
	defer s.ConnLimiter.Disconnect(clientIP)

	var sink broadcast.Sink
	if websocket.IsWebSocketUpgrade(r) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("⚠️ WebSocket upgrade failed for %s: %v", sessionID, err)
			return
		}
		sink = broadcast.NewWSSink(conn)
	} else {
		sse, err := broadcast.NewSSESink(w, r)
		if err != nil {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		sink = sse
	}

	s.Orch.Attach(sessionID, sink)

	<-sink.Done()
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	sessionID := pathParam(r.URL.Path, constants.EndpointStatus)
	if sessionID == "" {
		http.Error(w, constants.MsgMissingSessionID, http.StatusBadRequest)
		return
	}

	resp, err := s.Orch.Status(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, constants.CodeInstanceNotFound, constants.MsgSessionNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, constants.CodeProviderError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	sessionID := pathParam(r.URL.Path, constants.EndpointDisconnect)
	if sessionID == "" {
		http.Error(w, constants.MsgMissingSessionID, http.StatusBadRequest)
		return
	}

	if err := s.Orch.Disconnect(r.Context(), sessionID); err != nil {
		if errors.Is(err, orchestrator.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, constants.CodeInstanceNotFound, constants.MsgSessionNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, constants.CodeProviderError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, types.DisconnectResponse{Success: true})
}

func (s *Server) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, constants.MsgMethodNotAllowed, http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxBodySize)

	var req types.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, constants.CodeBadRequest, constants.MsgInvalidJSON)
		return
	}
	if req.Phone == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, constants.CodeBadRequest, "phone and text are required")
		return
	}

	if err := s.Orch.SendMessage(r.Context(), req.Phone, req.Text); err != nil {
		if errors.Is(err, gateway.ErrNoConnectedInstance) {
			writeError(w, http.StatusConflict, constants.CodeNoConnectedInstance, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, constants.CodeProviderError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, types.SendResponse{Success: true})
}

func pathParam(path, prefix string) string {
	param := strings.TrimPrefix(path, prefix)
	return strings.Trim(param, "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: message})
}
