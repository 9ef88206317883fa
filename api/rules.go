package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netwarden/warden/config"
	rule_parser "github.com/netwarden/warden/config/parsing/rule"
	"github.com/netwarden/warden/rule"
)

type ruleList struct {
	Rules    []rule.Rule `json:"rules"`
	Defaults []rule.Rule `json:"defaults,omitempty"`
}

type getRulesRequest struct {
	// include the built-in rules
	Defaults bool `form:"defaults"`
}

func (h *handler) getRules(ctx *gin.Context) {
	// swagger:route GET /rules Rule getRulesRequest
	//
	// Get the user rules, and the built-in rules with ?defaults=true.

	var req getRulesRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		writeError(ctx, NewError(http.StatusBadRequest, ErrCodeInvalid, err.Error()))
		return
	}

	resp := ruleList{
		Rules: h.c.Rules(),
	}
	if req.Defaults {
		resp.Defaults = h.c.DefaultRules()
	}
	ctx.JSON(http.StatusOK, resp)
}

type updateRulesRequest struct {
	Rules []*config.RuleConfig `json:"rules"`
}

func (h *handler) updateRules(ctx *gin.Context) {
	// swagger:route PUT /rules Rule updateRulesRequest
	//
	// Replace the user rules. On error the previous rules are kept.

	var req updateRulesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		writeError(ctx, NewError(http.StatusBadRequest, ErrCodeInvalid, err.Error()))
		return
	}

	rules, err := rule_parser.ParseRules(req.Rules)
	if err != nil {
		writeError(ctx, NewError(http.StatusBadRequest, ErrCodeInvalid, err.Error()))
		return
	}
	if err := h.c.UpdateRules(rules); err != nil {
		writeError(ctx, NewError(http.StatusBadRequest, ErrCodeInvalid, err.Error()))
		return
	}

	config.OnUpdate(func(c *config.Config) error {
		c.Rules = rule_parser.FormatRules(rules)
		return nil
	})

	writeOK(ctx)
}
