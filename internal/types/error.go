package types

import "fmt"

// CustomError carries an HTTP status and a dotted error type through the
// fiber error handler (for example profile.conflict.nickname).
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}
