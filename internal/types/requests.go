package types

type ConnectRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type SendRequest struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}
