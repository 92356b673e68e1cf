package response

import "fmt"

// ProtocolFault is a SOAP fault returned by the wholesaler. The exchange
// itself succeeded; the business operation did not.
type ProtocolFault struct {
	Endpoint string
	Code     string
	Message  string
}

func (e *ProtocolFault) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("wholesaler fault: %s", e.Message)
	}
	return fmt.Sprintf("wholesaler fault from %s: %s", e.Endpoint, e.Message)
}

// ParseError reports a body that could not be understood. Body keeps the raw
// response for diagnostics.
type ParseError struct {
	Endpoint string
	Reason   string
	Body     string
	Err      error
}

func (e *ParseError) Error() string {
	msg := "parsing response"
	if e.Endpoint != "" {
		msg += " from " + e.Endpoint
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
