package quickbooks

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FaultError is a QuickBooks API fault.
type FaultError struct {
	StatusCode int
	Code       string
	Message    string
	Detail     string
}

func (e *FaultError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("quickbooks: status %d: %s", e.StatusCode, e.Message)
	}
	msg := fmt.Sprintf("quickbooks: %s (%s)", e.Message, e.Code)
	if e.Detail != "" && e.Detail != e.Message {
		msg += ": " + e.Detail
	}
	return msg
}

type faultEnvelope struct {
	Fault struct {
		Error []struct {
			Message string `json:"Message"`
			Detail  string `json:"Detail"`
			Code    string `json:"code"`
		} `json:"Error"`
		Type string `json:"type"`
	} `json:"Fault"`
}

// parseFault decodes the Fault envelope QuickBooks returns with 4xx and 5xx
// responses, and sometimes with 200.
func parseFault(status int, body []byte) *FaultError {
	var env faultEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Fault.Error) > 0 {
		first := env.Fault.Error[0]
		return &FaultError{
			StatusCode: status,
			Code:       first.Code,
			Message:    first.Message,
			Detail:     first.Detail,
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &FaultError{StatusCode: status, Message: msg}
}
