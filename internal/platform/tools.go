package platform

import (
	"context"
	"fmt"
	"net/http"
)

type listToolsResponse struct {
	Tools []ToolCatalogItem `json:"tools"`
}

// ListTools fetches the tool catalog with the signed-in user's connection and
// ownership flags resolved.
func (c *Client) ListTools(ctx context.Context) ([]ToolCatalogItem, error) {
	var resp listToolsResponse
	if err := c.do(ctx, http.MethodGet, "/tools", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// GetTool fetches a single catalog item by slug.
func (c *Client) GetTool(ctx context.Context, slug string) (*ToolCatalogItem, error) {
	var tool ToolCatalogItem
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tools/%s", slug), nil, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// ConnectTool connects a free tool to the user's account.
func (c *Client) ConnectTool(ctx context.Context, slug string) (*ToolCatalogItem, error) {
	var tool ToolCatalogItem
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tools/%s/connect", slug), nil, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}

// PurchaseTool buys a paid tool with credits or the stored payment method.
func (c *Client) PurchaseTool(ctx context.Context, slug string) (*ToolCatalogItem, error) {
	var tool ToolCatalogItem
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tools/%s/purchase", slug), nil, &tool); err != nil {
		return nil, err
	}
	return &tool, nil
}
