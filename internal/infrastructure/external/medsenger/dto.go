// Package medsenger implements the Medsenger agent API client.
// The agent talks to the platform over a small JSON surface: outbound
// chat messages with optional action links and deadlines. The API key
// travels in the request body, not in a header.
package medsenger

import "fmt"

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// sendMessageRequest is the body of POST /api/agents/message.
type sendMessageRequest struct {
	ContractID int64      `json:"contract_id"`
	APIKey     string     `json:"api_key"`
	Message    messageDTO `json:"message"`
}

// messageDTO is the platform wire format of a chat message.
type messageDTO struct {
	Text           string `json:"text"`
	ActionLink     string `json:"action_link,omitempty"`
	ActionName     string `json:"action_name,omitempty"`
	ActionDeadline int64  `json:"action_deadline,omitempty"`
	OnlyPatient    bool   `json:"only_patient,omitempty"`
	OnlyDoctor     bool   `json:"only_doctor,omitempty"`
	IsUrgent       bool   `json:"is_urgent,omitempty"`
}

// stateResponse is the generic platform response envelope.
type stateResponse struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// isSuccess reports whether the platform accepted the request.
func (r stateResponse) isSuccess() bool {
	return r.State == "success"
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError represents a non-2xx platform response.
type APIError struct {
	StatusCode  int
	Description string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("medsenger api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("medsenger api error %d: %s", e.StatusCode, e.Description)
}

// IsServerError reports whether the platform failed on its side.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}
