package v1

import (
	"net/http"
	"time"

	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Submission-Pipeline/internal/dto"
	"github.com/andreyxaxa/Submission-Pipeline/internal/entity"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const IdempotencyHeader = "Idempotency-Key"

func submissionResponse(s *entity.Submission) response.Submission {
	return response.Submission{
		SubmissionID: s.ID.String(),
		Status:       s.Status,
		Progress:     s.Progress,
		LastError:    s.LastError,
		Documents:    s.Documents,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    s.UpdatedAt.Format(time.RFC3339),
	}
}

// @Summary  	Submit an application
// @Description Stores the submission and its document_uploaded event in one transaction. Repeating a request with the same Idempotency-Key returns the first result.
// @Tags 		submissions
// @Accept 		json
// @Produce 	json
// @Param 		Idempotency-Key header string false "Idempotency key"
// @Param 		request body dto.SubmitInput true "Submission"
// @Success 	201 {object} response.Submission
// @Failure 	400 {object} response.Error "Invalid input"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/submissions [post]
func (r *V1) submit(ctx *fiber.Ctx) error {
	var in dto.SubmitInput
	if err := ctx.BodyParser(&in); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}

	sub, err := r.subs.Submit(ctx.UserContext(), ctx.Get(IdempotencyHeader), in)
	if err != nil {
		return r.failure(ctx, err, "submit")
	}

	return ctx.Status(http.StatusCreated).JSON(submissionResponse(sub))
}

// @Summary 	Get a submission
// @Description Returns the current status and progress of a submission
// @Tags 		submissions
// @Produce 	json
// @Param 		id path string true "Submission ID(uuid)"
// @Success 	200 {object} response.Submission
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Submission not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/submissions/{id} [get]
func (r *V1) getSubmission(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	sub, err := r.subs.Get(ctx.UserContext(), id)
	if err != nil {
		return r.failure(ctx, err, "getSubmission")
	}

	return ctx.Status(http.StatusOK).JSON(submissionResponse(sub))
}
