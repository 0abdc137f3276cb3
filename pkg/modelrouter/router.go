// Package modelrouter implements the bridge's Model Router: deciding which
// upstream model a client-facing model string resolves to.
package modelrouter

import "strings"

// passthroughPrefixes are upstream model families sent verbatim: the
// client already named a concrete upstream model rather than an Anthropic
// alias.
var passthroughPrefixes = []string{"gpt-", "o1-", "o3-", "ep-", "doubao-", "deepseek-"}

// Router resolves a client-requested model name to the name actually sent
// upstream, per the big/middle/small tiering Anthropic clients expect.
type Router struct {
	bigModel    string
	middleModel string
	smallModel  string
}

// New builds a Router. middleModel falls back to bigModel when empty, and
// smallModel falls back to bigModel when empty, matching spec's "falls
// back to big_model if unset" rule for the middle tier.
func New(bigModel, middleModel, smallModel string) *Router {
	if middleModel == "" {
		middleModel = bigModel
	}
	if smallModel == "" {
		smallModel = bigModel
	}
	return &Router{bigModel: bigModel, middleModel: middleModel, smallModel: smallModel}
}

// Resolve returns the upstream model name for requestedModel, evaluating:
//  1. a leading "<provider>," prefix is stripped first (§4.8 passthrough
//     normalization);
//  2. a model already named in upstream terms (gpt-, o1-, o3-, ep-,
//     doubao-, deepseek-) passes through unchanged;
//  3. a case-insensitive substring match against haiku/sonnet selects the
//     small/middle tier; everything else, including opus, uses the big
//     tier.
func (r *Router) Resolve(requestedModel string) string {
	model := stripProviderPrefix(requestedModel)
	lower := strings.ToLower(model)

	for _, prefix := range passthroughPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return model
		}
	}

	switch {
	case strings.Contains(lower, "haiku"):
		return r.smallModel
	case strings.Contains(lower, "sonnet"):
		return r.middleModel
	default:
		return r.bigModel
	}
}

func stripProviderPrefix(model string) string {
	if idx := strings.Index(model, ","); idx != -1 {
		return model[idx+1:]
	}
	return model
}
