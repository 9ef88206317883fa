package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/netwarden/warden/observer"
)

func (h *handler) getStatistics(ctx *gin.Context) {
	// swagger:route GET /statistics Traffic getStatisticsRequest
	//
	// Get the aggregated traffic statistics.

	ctx.JSON(http.StatusOK, h.c.Statistics())
}

func (h *handler) clearStatistics(ctx *gin.Context) {
	// swagger:route DELETE /statistics Traffic clearStatisticsRequest
	//
	// Reset the history, the aggregates and the counters.

	h.c.ClearStatistics()
	writeOK(ctx)
}

type trafficList struct {
	Count int                    `json:"count"`
	List  []observer.Observation `json:"list"`
}

type getTrafficRequest struct {
	// maximum number of observations, newest first
	Limit int `form:"limit" binding:"min=0"`
}

func (h *handler) getTraffic(ctx *gin.Context) {
	// swagger:route GET /traffic Traffic getTrafficRequest
	//
	// Get the most recent observations.

	var req getTrafficRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		writeError(ctx, NewError(http.StatusBadRequest, ErrCodeInvalid, err.Error()))
		return
	}

	list := h.c.RecentTraffic(req.Limit)
	ctx.JSON(http.StatusOK, trafficList{
		Count: len(list),
		List:  list,
	})
}

type getProcessTrafficRequest struct {
	Process string `uri:"process"`
}

func (h *handler) getProcessTraffic(ctx *gin.Context) {
	// swagger:route GET /traffic/{process} Traffic getProcessTrafficRequest
	//
	// Get the observations of one process, oldest first.

	var req getProcessTrafficRequest
	ctx.ShouldBindUri(&req)

	id := strings.TrimSpace(req.Process)
	if id == "" {
		writeError(ctx, NewError(http.StatusBadRequest, ErrCodeInvalid, "process is required"))
		return
	}

	list := h.c.ProcessTraffic(id)
	ctx.JSON(http.StatusOK, trafficList{
		Count: len(list),
		List:  list,
	})
}
