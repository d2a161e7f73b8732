package platform

import "time"

// Role distinguishes the two account classes the platform knows about.
type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
)

// Provider identifies an OAuth sign-in provider.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
	ProviderApple     Provider = "apple"
)

// KnownProvider reports whether p is one of the supported sign-in providers.
func KnownProvider(p Provider) bool {
	switch p {
	case ProviderGoogle, ProviderMicrosoft, ProviderApple:
		return true
	}
	return false
}

// User is the platform account behind the current session.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Role             Role      `json:"role"`
	Name             string    `json:"name"`
	Onboarded        bool      `json:"onboarded"`
	Credits          int       `json:"credits,omitempty"`
	PurchasedTools   []string  `json:"purchased_tools,omitempty"`
	PurchasedBundles []string  `json:"purchased_bundles,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session is what the backend returns on a successful sign-in, sign-up,
// OAuth callback, or token refresh.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	User         *User  `json:"user"`
}

// PersonalAccessToken is the client read model of a server-owned PAT. The
// raw Token value is only ever populated on create and regenerate responses;
// list responses carry LastFourChars instead.
type PersonalAccessToken struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Token         string     `json:"token,omitempty"`
	LastFourChars string     `json:"last_four_chars,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ToolCatalogItem is a purchasable/connectable unit of functionality.
type ToolCatalogItem struct {
	ID             string `json:"id"`
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	PricingModel   string `json:"pricing_model"`
	LifetimePrice  int64  `json:"lifetime_price,omitempty"`
	Connected      bool   `json:"connected"`
	Owned          bool   `json:"owned"`
	IncludedInPlan bool   `json:"included_in_plan"`
	Disabled       bool   `json:"disabled"`
}

// HasAccess reports whether the signed-in user may use the tool.
func (t *ToolCatalogItem) HasAccess() bool {
	return t.Connected || t.Owned || t.IncludedInPlan
}

// IsFree reports whether the tool can be connected without payment.
func (t *ToolCatalogItem) IsFree() bool {
	return t.PricingModel == "free" || t.LifetimePrice == 0
}

// CreditPack is a purchasable bundle of credits.
type CreditPack struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credits    int    `json:"credits"`
	PriceCents int64  `json:"price_cents"`
}

// CreditTransaction is one row of a user's credit history.
type CreditTransaction struct {
	ID        string    `json:"id"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	ToolSlug  string    `json:"tool_slug,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SupportTicket is a user-filed support request.
type SupportTicket struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscription summarizes the user's current plan for the billing page.
type Subscription struct {
	Plan            string     `json:"plan"`
	Status          string     `json:"status"`
	RenewsAt        *time.Time `json:"renews_at,omitempty"`
	CancelAtPeriod  bool       `json:"cancel_at_period_end"`
	IncludedToolIDs []string   `json:"included_tool_ids,omitempty"`
}
