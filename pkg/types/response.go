package types

// SuccessEnvelope wraps every 2xx body as {"data": ...}; list endpoints add "page".
type SuccessEnvelope struct {
	Data any       `json:"data"`
	Page *PageMeta `json:"page,omitempty"`
}

// PageMeta echoes the applied window. NextOffset is set only when the page came back full.
type PageMeta struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Returned   int  `json:"returned"`
	NextOffset *int `json:"nextOffset,omitempty"`
}

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
