package types

import "time"

// Event is one frame pushed over a session's event stream. Data is one of the
// payload types below, matching Type.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type QRCodePayload struct {
	QRCode    string    `json:"qrcode"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusPayload struct {
	Connected    bool      `json:"connected"`
	Status       string    `json:"status"`
	InstanceName string    `json:"instance_name"`
	Timestamp    time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
