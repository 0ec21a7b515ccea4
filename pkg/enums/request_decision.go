package enums

import "fmt"

// RequestDecision represents the decision an approver can take on a pending request.
type RequestDecision string

const (
	// RequestDecisionApprove resolves the request and deducts stock.
	RequestDecisionApprove RequestDecision = "approve"
	// RequestDecisionReject resolves the request without touching stock.
	RequestDecisionReject RequestDecision = "reject"
)

// IsValid reports whether the value is a known RequestDecision.
func (d RequestDecision) IsValid() bool {
	return d == RequestDecisionApprove || d == RequestDecisionReject
}

// ParseRequestDecision converts raw input into a RequestDecision.
func ParseRequestDecision(value string) (RequestDecision, error) {
	switch RequestDecision(value) {
	case RequestDecisionApprove:
		return RequestDecisionApprove, nil
	case RequestDecisionReject:
		return RequestDecisionReject, nil
	}
	return "", fmt.Errorf("invalid request decision %q", value)
}
