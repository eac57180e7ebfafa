package middleware

import (
	"encoding/json"
	"testing"
)

func TestRedactAuditBodySupply(t *testing.T) {
	body := []byte(`{"amount":"1000000","proof":{"signer":"0xbeef","signature":"0xdead","issued_at":1}}`)
	out := redactAuditBody("/v1/supply/increase", body)

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(out), &data); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	proof, ok := data["proof"].(map[string]interface{})
	if !ok {
		t.Fatalf("proof missing from output")
	}
	if proof["signature"] == "0xdead" {
		t.Fatalf("signature not redacted")
	}
	if proof["signer"] != "0xbeef" {
		t.Fatalf("signer is a public address and should survive redaction")
	}
	if data["amount"] != "1000000" {
		t.Fatalf("amount should survive redaction")
	}
}

func TestRedactAuditBodyNonSensitivePath(t *testing.T) {
	body := []byte(`{"ok":true}`)
	out := redactAuditBody("/health", body)
	if out != string(body) {
		t.Fatalf("unexpected redaction on non-sensitive path")
	}
}

func TestRedactAuditBodyInvalidJSON(t *testing.T) {
	body := []byte("not-json")
	out := redactAuditBody("/v1/flashloan", body)
	if out != "[redacted]" {
		t.Fatalf("expected redacted placeholder for invalid json")
	}
}
