package handler

import (
	"net/http"

	"foodrescue/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func statusForKind(k usecase.ErrorKind) int {
	switch k {
	case usecase.KindValidation:
		return http.StatusBadRequest
	case usecase.KindAuthorization:
		return http.StatusForbidden
	case usecase.KindNotFound:
		return http.StatusNotFound
	case usecase.KindConflict:
		return http.StatusConflict
	case usecase.KindGateway:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := usecase.AsError(err); ok {
		status := statusForKind(e.Kind)
		if status == http.StatusInternalServerError {
			log.Errorf("request_id=%s %v: %v", requestID(c), e, e.Unwrap())
		}
		if e.Kind == usecase.KindGateway {
			c.Response().Header().Set("Retry-After", "5")
		}
		return c.JSON(status, ErrorResponse{Error: e.Code, Message: e.Message})
	}

	//500
	log.Errorf("request_id=%s unexpected error: %v", requestID(c), err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: usecase.ErrInternal.Code, Message: usecase.ErrInternal.Message})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: usecase.ErrValidation.Code, Message: msg})
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
