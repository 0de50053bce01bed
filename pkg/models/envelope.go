package models

// Action results every envelope must carry. Actions may return custom
// result strings; transitions key on them verbatim.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultTimeout  = "timeout"
)

// Scenario execution outcomes returned by the executor.
const (
	ScenarioSuccess = "success"
	ScenarioStop    = "stop"
	ScenarioBreak   = "break"
	ScenarioAbort   = "abort"
	ScenarioError   = "error"
)

// Envelope is the normalised result of a single action invocation.
type Envelope struct {
	Result       string         `json:"result"`
	ResponseData map[string]any `json:"response_data,omitempty"`
	Error        *ActionError   `json:"error,omitempty"`
}

// ActionError describes an action failure with a taxonomy code.
type ActionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ActionError) Error() string {
	return e.Code + ": " + e.Message
}

// Success builds a success envelope around optional response data.
func Success(data map[string]any) *Envelope {
	return &Envelope{Result: ResultSuccess, ResponseData: data}
}

// Errorf builds an error envelope with a taxonomy code and message.
func Errorf(code, message string) *Envelope {
	return &Envelope{
		Result: ResultError,
		Error:  &ActionError{Code: code, Message: message},
	}
}

// Timeout builds the envelope returned when waiting on an action exceeds
// its deadline. The underlying action keeps running.
func Timeout(message string) *Envelope {
	return &Envelope{
		Result: ResultTimeout,
		Error:  &ActionError{Code: CodeTimeout, Message: message},
	}
}
