package api

// ErrorEnvelope is the body of every locally generated error response
type ErrorEnvelope struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// WebhookAck answers a webhook delivery that was not forwarded
type WebhookAck struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Upstream string `json:"upstream"`
	Uptime   string `json:"uptime"`
	Requests uint64 `json:"requests"`
	Errors   uint64 `json:"errors"`
	// Keys currently held in the webhook dedup window
	SeenWebhooks int `json:"seen_webhooks"`
}
