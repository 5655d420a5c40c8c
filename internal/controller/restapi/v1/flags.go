package v1

import (
	"net/http"

	"github.com/andreyxaxa/Submission-Pipeline/internal/controller/restapi/v1/request"
	"github.com/gofiber/fiber/v2"
)

// @Summary 	List feature flags
// @Tags 		flags
// @Produce 	json
// @Success 	200 {array} entity.FeatureFlag
// @Router 		/v1/flags [get]
func (r *V1) listFlags(ctx *fiber.Ctx) error {
	flags, err := r.flags.List(ctx.UserContext())
	if err != nil {
		return r.failure(ctx, err, "listFlags")
	}

	return ctx.Status(http.StatusOK).JSON(flags)
}

// @Summary 	Toggle a feature flag
// @Tags 		flags
// @Accept 		json
// @Produce 	json
// @Param 		name path string true "Flag name"
// @Param 		request body request.SetFlag true "New value"
// @Success 	200 {object} entity.FeatureFlag
// @Failure 	400 {object} response.Error
// @Failure 	404 {object} response.Error
// @Router 		/v1/flags/{name} [patch]
func (r *V1) setFlag(ctx *fiber.Ctx) error {
	var req request.SetFlag
	if err := ctx.BodyParser(&req); err != nil || req.Enabled == nil {
		return errorResponse(ctx, http.StatusBadRequest, "enabled is required")
	}

	flag, err := r.flags.Set(ctx.UserContext(), ctx.Params("name"), *req.Enabled)
	if err != nil {
		return r.failure(ctx, err, "setFlag")
	}

	return ctx.Status(http.StatusOK).JSON(flag)
}
