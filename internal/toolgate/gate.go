// Package toolgate decides whether and how a tool is presented to the
// current user: rendered outright, rendered with an access banner, blocked
// behind a call-to-action, or unavailable.
package toolgate

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/mtp-io/toolportal/internal/platform"
)

// Decision is how the tool page should render.
type Decision int

const (
	// DecisionUnavailable: the tool is missing or disabled.
	DecisionUnavailable Decision = iota
	// DecisionBlocked: nothing renders until access is granted.
	DecisionBlocked
	// DecisionRender: the tool renders with no banner.
	DecisionRender
	// DecisionRenderWithBanner: the tool renders with a dismissible
	// banner offering the access action.
	DecisionRenderWithBanner
)

// Action is the call-to-action shown on a banner or blocked view.
type Action string

const (
	ActionNone    Action = ""
	ActionConnect Action = "connect"
	ActionBuy     Action = "buy"
)

// Result pairs the render decision with its call-to-action.
type Result struct {
	Decision Decision
	Action   Action
}

// Decide applies the access matrix to a catalog item. noLoginTool softens
// the gate: the tool renders regardless, with a banner when access is
// missing.
func Decide(item *platform.ToolCatalogItem, noLoginTool bool) Result {
	if item == nil || item.Disabled {
		return Result{Decision: DecisionUnavailable}
	}
	if item.HasAccess() {
		return Result{Decision: DecisionRender}
	}

	action := ActionBuy
	if item.IsFree() {
		action = ActionConnect
	}
	if noLoginTool {
		return Result{Decision: DecisionRenderWithBanner, Action: action}
	}
	return Result{Decision: DecisionBlocked, Action: action}
}

// CatalogAPI is the slice of the platform client the gate needs.
type CatalogAPI interface {
	GetTool(ctx context.Context, slug string) (*platform.ToolCatalogItem, error)
}

// Gate fetches catalog items and applies Decide.
type Gate struct {
	catalog CatalogAPI
	log     *logrus.Entry
}

// New builds a Gate.
func New(catalog CatalogAPI, log *logrus.Entry) *Gate {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Gate{catalog: catalog, log: log}
}

// Evaluate fetches the tool by slug and decides how to present it. A missing
// tool is DecisionUnavailable, not an error; other failures propagate.
func (g *Gate) Evaluate(ctx context.Context, slug string, noLoginTool bool) (Result, *platform.ToolCatalogItem, error) {
	item, err := g.catalog.GetTool(ctx, slug)
	if err != nil {
		var netErr *platform.NetworkError
		if errors.As(err, &netErr) {
			return Result{}, nil, err
		}
		g.log.WithField("slug", slug).WithError(err).Info("tool lookup failed, treating as unavailable")
		return Result{Decision: DecisionUnavailable}, nil, nil
	}
	return Decide(item, noLoginTool), item, nil
}
