package platform

import (
	"context"
	"fmt"
	"net/http"
)

type creditsBalanceResponse struct {
	Credits int `json:"credits"`
}

// CreditsBalance returns the user's current credit balance.
func (c *Client) CreditsBalance(ctx context.Context) (int, error) {
	var resp creditsBalanceResponse
	if err := c.do(ctx, http.MethodGet, "/credits/balance", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Credits, nil
}

type listCreditPacksResponse struct {
	Packs []CreditPack `json:"packs"`
}

// ListCreditPacks returns the purchasable credit packs.
func (c *Client) ListCreditPacks(ctx context.Context) ([]CreditPack, error) {
	var resp listCreditPacksResponse
	if err := c.do(ctx, http.MethodGet, "/credits/packs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Packs, nil
}

// PurchaseCreditPack buys a credit pack and returns the new balance.
func (c *Client) PurchaseCreditPack(ctx context.Context, packID string) (int, error) {
	var resp creditsBalanceResponse
	path := fmt.Sprintf("/credits/packs/%s/purchase", packID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Credits, nil
}

type listTransactionsResponse struct {
	Transactions []CreditTransaction `json:"transactions"`
}

// ListCreditTransactions returns the user's credit history, newest first.
func (c *Client) ListCreditTransactions(ctx context.Context) ([]CreditTransaction, error) {
	var resp listTransactionsResponse
	if err := c.do(ctx, http.MethodGet, "/credits/transactions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}
