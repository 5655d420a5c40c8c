package v1

import (
	"errors"
	"net/http"

	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Submission-Pipeline/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
)

func errorResponse(ctx *fiber.Ctx, code int, msg string) error {
	return ctx.Status(code).JSON(response.Error{Error: msg})
}

var statusByErr = []struct {
	err  error
	code int
}{
	{errs.ErrInvalidInput, http.StatusBadRequest},
	{errs.ErrUnknownPriority, http.StatusBadRequest},
	{errs.ErrInvalidConfig, http.StatusBadRequest},
	{errs.ErrInvalidWorkerCount, http.StatusBadRequest},
	{errs.ErrUnknownStrategy, http.StatusBadRequest},
	{errs.ErrRecordNotFound, http.StatusNotFound},
	{errs.ErrUnknownQueue, http.StatusNotFound},
	{errs.ErrUnknownPool, http.StatusNotFound},
	{errs.ErrUnknownWorker, http.StatusNotFound},
	{errs.ErrInvalidTransition, http.StatusConflict},
	{errs.ErrAlreadyExists, http.StatusConflict},
	{errs.ErrBulkheadFull, http.StatusTooManyRequests},
	{errs.ErrCircuitOpen, http.StatusServiceUnavailable},
	{errs.ErrNoHealthyWorker, http.StatusServiceUnavailable},
}

// StatusFor maps a usecase error to the HTTP status it is reported with.
func StatusFor(err error) int {
	for _, s := range statusByErr {
		if errors.Is(err, s.err) {
			return s.code
		}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}

	return http.StatusInternalServerError
}

// failure writes err as a JSON error. Internal errors are logged and their
// text is not exposed.
func (r *V1) failure(ctx *fiber.Ctx, err error, where string) error {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		r.logger.Error(err, "restapi - v1 - "+where)

		return errorResponse(ctx, code, "internal error")
	}

	return errorResponse(ctx, code, err.Error())
}

// ErrorHandler reports errors that escape the handlers, such as unmatched routes.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := StatusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}

	return errorResponse(ctx, code, msg)
}
