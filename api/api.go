// Package api exposes the filter control contract over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-gost/core/auth"
	"github.com/netwarden/warden/filter"
	"github.com/netwarden/warden/observer"
	"github.com/netwarden/warden/rule"
	"github.com/netwarden/warden/trust"
)

type Response struct {
	Code int    `json:"code,omitempty"`
	Msg  string `json:"msg,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Controller is the control surface of a running filter.
type Controller interface {
	IsEnabled() bool
	SetEnabled(b bool)
	Status() filter.Status
	Networks() []trust.NetworkConfig
	UpdateNetworks(cfgs []trust.NetworkConfig) error
	Rules() []rule.Rule
	DefaultRules() []rule.Rule
	UpdateRules(rules []rule.Rule) error
	Statistics() filter.Report
	ClearStatistics()
	RecentTraffic(limit int) []observer.Observation
	ProcessTraffic(id string) []observer.Observation
	ReevaluateNetwork(ctx context.Context) (trust.State, error)
	Subscribe() (<-chan observer.Observation, func())
}

type Options struct {
	AccessLog    bool
	PathPrefix   string
	Auther       auth.Authenticator
	AllowOrigins []string
}

type handler struct {
	c Controller
}

func Register(r *gin.Engine, c Controller, opts *Options) {
	if opts == nil {
		opts = &Options{}
	}

	corsCfg := cors.Config{
		AllowMethods:        []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:        []string{"*"},
		AllowPrivateNetwork: true,
	}
	if len(opts.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = opts.AllowOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}

	r.Use(
		cors.New(corsCfg),
		gin.Recovery(),
	)
	if opts.AccessLog {
		r.Use(mwLogger())
	}

	router := r.Group("")
	if opts.PathPrefix != "" {
		router = router.Group(opts.PathPrefix)
	}
	router.Use(mwBasicAuth(opts.Auther))

	h := &handler{c: c}

	router.GET("/status", h.getStatus)
	router.PUT("/enabled", h.setEnabled)

	router.GET("/networks", h.getNetworks)
	router.PUT("/networks", h.updateNetworks)
	router.POST("/network/reevaluate", h.reevaluateNetwork)

	router.GET("/rules", h.getRules)
	router.PUT("/rules", h.updateRules)

	router.GET("/statistics", h.getStatistics)
	router.DELETE("/statistics", h.clearStatistics)

	router.GET("/traffic", h.getTraffic)
	router.GET("/traffic/stream", h.streamTraffic)
	router.GET("/traffic/:process", h.getProcessTraffic)
}

func writeOK(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, Response{
		Msg: "OK",
	})
}
