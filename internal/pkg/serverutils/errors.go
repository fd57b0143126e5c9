package serverutils

// AppError carries an HTTP status alongside a message so the error middleware
// can map service failures onto responses without inspecting error strings.
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}
