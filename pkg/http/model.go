package http

// APIResponse represents standard API response.
type APIResponse struct {
	Status  int         `json:"status" example:"202"`
	Message string      `json:"message" example:"Accepted"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"request_id"`
	Message string                 `json:"message,omitempty" example:"request_id is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
