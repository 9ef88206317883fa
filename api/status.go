package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netwarden/warden/config"
)

func (h *handler) getStatus(ctx *gin.Context) {
	// swagger:route GET /status Status getStatusRequest
	//
	// Get the filter status: enabled flag, trust state, counts and totals.
	//
	//     Responses:
	//       200: getStatusResponse

	ctx.JSON(http.StatusOK, h.c.Status())
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *handler) setEnabled(ctx *gin.Context) {
	// swagger:route PUT /enabled Status setEnabledRequest
	//
	// Turn the filter on or off. A disabled filter allows every flow.

	var req setEnabledRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		writeError(ctx, NewError(http.StatusBadRequest, ErrCodeInvalid, "enabled is required"))
		return
	}

	h.c.SetEnabled(*req.Enabled)
	enabled := *req.Enabled
	config.OnUpdate(func(c *config.Config) error {
		if c.Engine == nil {
			c.Engine = &config.EngineConfig{}
		}
		c.Engine.Enabled = &enabled
		return nil
	})

	writeOK(ctx)
}
