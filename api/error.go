package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrInvalid     = &Error{statusCode: http.StatusBadRequest, Code: 40001, Msg: "object invalid"}
	ErrNotFound    = &Error{statusCode: http.StatusNotFound, Code: 40004, Msg: "object not found"}
	ErrSave        = &Error{statusCode: http.StatusInternalServerError, Code: 40005, Msg: "save config failed"}
	ErrUnavailable = &Error{statusCode: http.StatusServiceUnavailable, Code: 40006, Msg: "service unavailable"}
)

const (
	ErrCodeInvalid          = 40001
	ErrCodeFailed           = 40003
	ErrCodeNotFound         = 40004
	ErrCodeSaveConfigFailed = 40005
	ErrCodeUnavailable      = 40006
)

// Error is an api error.
type Error struct {
	statusCode int
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

func NewError(status, code int, msg string) error {
	return &Error{
		statusCode: status,
		Code:       code,
		Msg:        msg,
	}
}

func (e *Error) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

func writeError(c *gin.Context, err error) {
	c.JSON(getStatusCode(err), err)
}

func getStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var e *Error
	if errors.As(err, &e) {
		if e.statusCode >= http.StatusOK && e.statusCode < 600 {
			return e.statusCode
		}
	}
	return http.StatusInternalServerError
}
