package models

// Response is the uniform envelope every API endpoint returns.
// Expected upstream failures surface here as a non-2xx Status plus a
// human-readable Error, never as an unhandled panic.
type Response struct {
	Status int    `json:"status"`
	Data   any    `json:"data"`
	Error  string `json:"error,omitempty"`
}

func OK(data any) Response {
	return Response{Status: 200, Data: data}
}

func Err(status int, msg string) Response {
	return Response{Status: status, Error: msg}
}
