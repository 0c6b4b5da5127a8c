// Package webhooks posts signed threat alerts to configured endpoints.
package webhooks

import "time"

// Event types dispatched by the threat service and the health checker.
const (
	EventThreatSubmitted = "threat.submitted"
	EventThreatAnalyzed  = "threat.analyzed"
	EventThreatCritical  = "threat.critical"
	EventSystemDegraded  = "system.degraded"
)

// SignatureHeader carries "sha256=<hex hmac>" of the request body.
const SignatureHeader = "X-Biosec-Signature"

// Event is the JSON body of every delivery.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Delivery is the outcome of one attempt against one endpoint.
type Delivery struct {
	URL        string
	EventType  string
	StatusCode int
	Attempt    int
	Success    bool
	Error      string
}
