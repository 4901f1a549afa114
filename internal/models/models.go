package models

// Inbound bodies use the front-end's camelCase keys; the matching *Payload
// types carry the snake_case keys the upstream server expects. Every field is
// always sent, empty or not.

// StatusRequest asks whether a user's integration is connected
type StatusRequest struct {
	UserID              string `json:"userId"`
	ConnectionRequestID string `json:"connectionRequestId"`
}

type StatusPayload struct {
	UserID              string `json:"user_id"`
	ConnectionRequestID string `json:"connection_request_id"`
}

func (r StatusRequest) Upstream() StatusPayload {
	return StatusPayload{
		UserID:              r.UserID,
		ConnectionRequestID: r.ConnectionRequestID,
	}
}

// ConnectRequest starts an OAuth connection flow
type ConnectRequest struct {
	UserID       string `json:"userId"`
	AuthConfigID string `json:"authConfigId"`
}

type ConnectPayload struct {
	UserID       string `json:"user_id"`
	AuthConfigID string `json:"auth_config_id"`
}

func (r ConnectRequest) Upstream() ConnectPayload {
	return ConnectPayload{
		UserID:       r.UserID,
		AuthConfigID: r.AuthConfigID,
	}
}

// DisconnectRequest removes a connection by id or every connection of a user
type DisconnectRequest struct {
	UserID              string `json:"userId"`
	ConnectionID        string `json:"connectionId"`
	ConnectionRequestID string `json:"connectionRequestId"`
}

type DisconnectPayload struct {
	UserID              string `json:"user_id"`
	ConnectionID        string `json:"connection_id"`
	ConnectionRequestID string `json:"connection_request_id"`
}

func (r DisconnectRequest) Upstream() DisconnectPayload {
	return DisconnectPayload{
		UserID:              r.UserID,
		ConnectionID:        r.ConnectionID,
		ConnectionRequestID: r.ConnectionRequestID,
	}
}
