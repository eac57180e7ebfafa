package model

import (
	"time"
)

// AuditLog is one complete record of an API operation against the treasury.
type AuditLog struct {
	ID        string `json:"id"` // request ID (UUID)
	Caller    string `json:"caller"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	// Request/response bodies are stored redacted: identity-proof
	// signatures never reach the audit trail in the clear.
	RequestBody  string `json:"request_body"`
	StatusCode   int    `json:"status_code"`
	ResponseBody string `json:"response_body"`
	LatencyMs    int64  `json:"latency_ms"`

	// Business context filled in by handlers (amounts, record IDs,
	// upstream errors).
	Context map[string]interface{} `json:"context"`

	CreatedAt time.Time `json:"created_at"`
}
