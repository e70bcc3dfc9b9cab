package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// queryFailureMessage is shown to end users instead of internal error text.
const queryFailureMessage = "حدث خطأ أثناء البحث عن التحديثات. الرجاء المحاولة لاحقاً."

// envelope is a JSend body. error bodies also carry the request id for log correlation.
type envelope struct {
	Status    string `json:"status"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Status: "success", Data: data})
}

func fail(c echo.Context, code int, message string) error {
	return c.JSON(code, envelope{Status: "fail", Message: message})
}

func failFields(c echo.Context, fieldErrors map[string]string) error {
	return c.JSON(http.StatusBadRequest, envelope{
		Status:  "fail",
		Message: "Validation failed",
		Data:    map[string]any{"validation_errors": fieldErrors},
	})
}

// serverError answers with the localized generic message; the cause is only logged.
func serverError(c echo.Context, code int) error {
	if code < http.StatusInternalServerError {
		code = http.StatusInternalServerError
	}
	return c.JSON(code, envelope{
		Status:    "error",
		Message:   queryFailureMessage,
		Code:      code,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	})
}
