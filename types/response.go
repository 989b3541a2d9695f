package types

// ErrorDetail carries diagnostic fields next to the user-facing message
type ErrorDetail struct {
	Timestamp    string `json:"timestamp"`
	Path         string `json:"path"`
	Code         int    `json:"code"`
	DebugMessage string `json:"debug_message,omitempty"`
}

// ErrorResponse is the envelope for every failed request
type ErrorResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// SuccessResponse is the envelope for single-resource responses
type SuccessResponse[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data,omitempty"`
}

// ListResponse is the envelope for ticket listings
type ListResponse[T any] struct {
	Success bool `json:"success"`
	Tickets []T  `json:"tickets"`
	Count   int  `json:"count"`
}
