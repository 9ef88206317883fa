package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netwarden/warden/config"
	network_parser "github.com/netwarden/warden/config/parsing/network"
	"github.com/netwarden/warden/trust"
)

const reevaluateTimeout = 10 * time.Second

type networkList struct {
	Count int                     `json:"count"`
	List  []*config.NetworkConfig `json:"list"`
}

func (h *handler) getNetworks(ctx *gin.Context) {
	// swagger:route GET /networks Network getNetworksRequest
	//
	// Get the configured trusted networks.

	list := network_parser.FormatNetworks(h.c.Networks())
	ctx.JSON(http.StatusOK, networkList{
		Count: len(list),
		List:  list,
	})
}

type updateNetworksRequest struct {
	Networks []*config.NetworkConfig `json:"networks"`
}

func (h *handler) updateNetworks(ctx *gin.Context) {
	// swagger:route PUT /networks Network updateNetworksRequest
	//
	// Replace the trusted networks. Networks without an id are assigned one.
	// On error the previous networks are kept.

	var req updateNetworksRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeError(ctx, NewError(http.StatusBadRequest, ErrCodeInvalid, err.Error()))
		return
	}

	networks, err := network_parser.ParseNetworks(req.Networks)
	if err != nil {
		writeError(ctx, NewError(http.StatusBadRequest, ErrCodeInvalid, err.Error()))
		return
	}
	if err := h.c.UpdateNetworks(networks); err != nil {
		writeError(ctx, NewError(http.StatusBadRequest, ErrCodeInvalid, err.Error()))
		return
	}

	list := network_parser.FormatNetworks(networks)
	config.OnUpdate(func(c *config.Config) error {
		c.Networks = list
		return nil
	})

	ctx.JSON(http.StatusOK, networkList{
		Count: len(list),
		List:  list,
	})
}

func (h *handler) reevaluateNetwork(ctx *gin.Context) {
	// swagger:route POST /network/reevaluate Network reevaluateNetworkRequest
	//
	// Detect the attached network again and return the resulting trust state.

	c, cancel := context.WithTimeout(ctx.Request.Context(), reevaluateTimeout)
	defer cancel()

	st, err := h.c.ReevaluateNetwork(c)
	if err != nil {
		if errors.Is(err, trust.ErrNoDetector) {
			writeError(ctx, NewError(http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error()))
			return
		}
		writeError(ctx, NewError(http.StatusInternalServerError, ErrCodeFailed, err.Error()))
		return
	}

	ctx.JSON(http.StatusOK, st)
}
