package platform

import (
	"context"
	"net/http"
)

// GetSubscription returns the user's current plan summary for the billing
// page.
func (c *Client) GetSubscription(ctx context.Context) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodGet, "/billing/subscription", nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
