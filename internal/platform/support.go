package platform

import (
	"context"
	"net/http"
)

// CreateTicketParams is the payload for a new support ticket.
type CreateTicketParams struct {
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// CreateTicket files a support ticket.
func (c *Client) CreateTicket(ctx context.Context, params CreateTicketParams) (*SupportTicket, error) {
	var ticket SupportTicket
	if err := c.do(ctx, http.MethodPost, "/support/tickets", params, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

type listTicketsResponse struct {
	Tickets []SupportTicket `json:"tickets"`
}

// ListTickets returns the user's support tickets.
func (c *Client) ListTickets(ctx context.Context) ([]SupportTicket, error) {
	var resp listTicketsResponse
	if err := c.do(ctx, http.MethodGet, "/support/tickets", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tickets, nil
}
