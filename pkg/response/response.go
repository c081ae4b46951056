package response

import "expensecontrol/pkg/apperror"

// Response is the envelope every JSON endpoint answers with
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success wraps data in a success envelope
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error wraps an error message in an error envelope
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// FromError builds the error envelope for a classified service error.
// Internal causes never leak into the message.
func FromError(err error) (int, Response) {
	status := apperror.HTTPStatus(err)
	return status, Error(status, apperror.Message(err))
}
