package types

type ConnectResponse struct {
	SessionID    string `json:"session_id"`
	InstanceName string `json:"instance_name"`
}

type StatusResponse struct {
	Connected    bool   `json:"connected"`
	Status       string `json:"status"`
	InstanceName string `json:"instance_name"`
}

type DisconnectResponse struct {
	Success bool `json:"success"`
}

type SendResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
