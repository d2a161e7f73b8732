package portal

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mtp-io/toolportal/internal/authstate"
	"github.com/mtp-io/toolportal/internal/platform"
	"github.com/mtp-io/toolportal/internal/toolgate"
)

func (p *Portal) handleHome(w http.ResponseWriter, r *http.Request) {
	p.renderTemplate(w, r, "home.html", p.config.Tool.Name, nil)
}

func (p *Portal) handleAuthPage(w http.ResponseWriter, r *http.Request) {
	p.renderTemplate(w, r, "auth.html", "Sign In", map[string]interface{}{
		"Role":     platform.RoleUser,
		"Redirect": r.URL.Query().Get("redirect"),
	})
}

func (p *Portal) handleVendorAuthPage(w http.ResponseWriter, r *http.Request) {
	p.renderTemplate(w, r, "auth.html", "Vendor Sign In", map[string]interface{}{
		"Role":     platform.RoleVendor,
		"Redirect": r.URL.Query().Get("redirect"),
	})
}

func (p *Portal) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	role := platform.Role(r.FormValue("role"))
	if role == "" {
		role = platform.RoleUser
	}

	sess, err := p.ensureSession(w, r)
	if err != nil {
		p.log.WithError(err).Error("creating session failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sess.touch(r.URL.Path)

	if err := sess.auth.Login(r.Context(), email, password, role); err != nil {
		p.log.WithField("email", email).WithError(err).Info("login failed")
		p.renderTemplate(w, r, "auth.html", "Sign In", map[string]interface{}{
			"Role":     role,
			"Email":    email,
			"Redirect": r.FormValue("redirect"),
		})
		return
	}

	http.Redirect(w, r, safeRedirect(r.FormValue("redirect")), http.StatusSeeOther)
}

func (p *Portal) handleSignupPost(w http.ResponseWriter, r *http.Request) {
	params := authstate.SignupParams{
		Email:        r.FormValue("email"),
		Password:     r.FormValue("password"),
		Name:         r.FormValue("name"),
		Role:         platform.Role(r.FormValue("role")),
		ReferralCode: r.FormValue("referral_code"),
	}
	if params.Role == "" {
		params.Role = platform.RoleUser
	}

	sess, err := p.ensureSession(w, r)
	if err != nil {
		p.log.WithError(err).Error("creating session failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sess.touch(r.URL.Path)

	if err := sess.auth.Signup(r.Context(), params); err != nil {
		p.log.WithField("email", params.Email).WithError(err).Info("signup failed")
		p.renderTemplate(w, r, "auth.html", "Sign Up", map[string]interface{}{
			"Role":  params.Role,
			"Email": params.Email,
			"Name":  params.Name,
		})
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (p *Portal) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sidCookieName); err == nil {
		if sess := p.registry.remove(cookie.Value); sess != nil {
			sess.auth.Logout(r.Context())
			sess.teardown()
		}
	}
	p.setSessionCookie(w, "", time.Unix(0, 0))
	http.Redirect(w, r, "/auth", http.StatusSeeOther)
}

func (p *Portal) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	provider := platform.Provider(chi.URLParam(r, "provider"))

	sess, err := p.ensureSession(w, r)
	if err != nil {
		p.log.WithError(err).Error("creating session failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sess.touch(r.URL.Path)

	authURL, err := sess.auth.OAuthLogin(r.Context(), provider, authstate.OAuthLoginOptions{
		ReferralCode: r.URL.Query().Get("referral_code"),
		RedirectPath: r.URL.Query().Get("redirect"),
	})
	if err != nil {
		p.log.WithField("provider", provider).WithError(err).Warn("oauth initiation failed")
		http.Redirect(w, r, "/auth", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, authURL, http.StatusSeeOther)
}

func (p *Portal) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := platform.Provider(chi.URLParam(r, "provider"))
	query := r.URL.Query()
	params := platform.OAuthCallbackParams{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}

	sess, err := p.ensureSession(w, r)
	if err != nil {
		p.log.WithError(err).Error("creating session failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sess.touch(r.URL.Path)

	if err := sess.auth.CompleteOAuth(r.Context(), provider, params); err != nil {
		var oauthErr *platform.OAuthError
		message := "Sign-in with the provider failed."
		if errors.As(err, &oauthErr) {
			message = oauthErr.Error()
		}
		p.log.WithField("provider", provider).WithError(err).Warn("oauth callback failed")
		w.WriteHeader(http.StatusBadRequest)
		p.renderTemplate(w, r, "oauth_error.html", "Sign-in Failed", map[string]interface{}{
			"Message": message,
		})
		return
	}

	target := "/dashboard"
	if state, err := platform.DecodeOAuthState(params.State); err == nil && state.RedirectPath != "" {
		target = safeRedirect(state.RedirectPath)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (p *Portal) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)

	credits, err := sess.auth.Client().CreditsBalance(r.Context())
	if err != nil {
		p.log.WithError(err).Warn("credits balance fetch failed")
	}
	tokens, err := sess.auth.Client().ListTokens(r.Context())
	if err != nil {
		p.log.WithError(err).Warn("token list fetch failed")
	}
	tools, err := sess.auth.Client().ListTools(r.Context())
	if err != nil {
		p.log.WithError(err).Warn("tool catalog fetch failed")
	}

	p.renderTemplate(w, r, "dashboard.html", "Dashboard", map[string]interface{}{
		"Credits":      credits,
		"ActiveTokens": len(tokens),
		"Tools":        tools,
	})
}

func (p *Portal) handleBilling(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)

	sub, err := sess.auth.Client().GetSubscription(r.Context())
	if err != nil {
		p.log.WithError(err).Warn("subscription fetch failed")
	}
	p.renderTemplate(w, r, "billing.html", "Billing", map[string]interface{}{
		"Subscription": sub,
	})
}

func (p *Portal) handleCredits(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)
	client := sess.auth.Client()

	balance, err := client.CreditsBalance(r.Context())
	if err != nil {
		p.log.WithError(err).Warn("credits balance fetch failed")
	}
	packs, err := client.ListCreditPacks(r.Context())
	if err != nil {
		p.log.WithError(err).Warn("credit packs fetch failed")
	}
	transactions, err := client.ListCreditTransactions(r.Context())
	if err != nil {
		p.log.WithError(err).Warn("credit transactions fetch failed")
	}

	p.renderTemplate(w, r, "credits.html", "Credits", map[string]interface{}{
		"Balance":      balance,
		"Packs":        packs,
		"Transactions": transactions,
	})
}

func (p *Portal) handlePurchaseCredits(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)
	packID := chi.URLParam(r, "packID")

	if _, err := sess.auth.Client().PurchaseCreditPack(r.Context(), packID); err != nil {
		p.log.WithField("pack_id", packID).WithError(err).Warn("credit pack purchase failed")
		sess.Error("Purchase failed. Please try again.")
	} else {
		sess.Success("Credits added to your account.")
		if err := sess.auth.RefreshUser(r.Context()); err != nil {
			p.log.WithError(err).Warn("user refresh after purchase failed")
		}
	}
	http.Redirect(w, r, "/dashboard/credits", http.StatusSeeOther)
}

func (p *Portal) handleSupport(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)

	tickets, err := sess.auth.Client().ListTickets(r.Context())
	if err != nil {
		p.log.WithError(err).Warn("ticket list fetch failed")
	}
	p.renderTemplate(w, r, "support.html", "Support", map[string]interface{}{
		"Tickets": tickets,
	})
}

func (p *Portal) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)

	_, err := sess.auth.Client().CreateTicket(r.Context(), platform.CreateTicketParams{
		Subject: r.FormValue("subject"),
		Body:    r.FormValue("body"),
	})
	if err != nil {
		p.log.WithError(err).Warn("ticket creation failed")
		sess.Error("Could not create the ticket. Please try again.")
	} else {
		sess.Success("Ticket created. We'll get back to you soon.")
	}
	http.Redirect(w, r, "/dashboard/support", http.StatusSeeOther)
}

func (p *Portal) handleProfile(w http.ResponseWriter, r *http.Request) {
	p.renderTemplate(w, r, "profile.html", "Profile", nil)
}

func (p *Portal) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		sess.Error("Name cannot be empty.")
		http.Redirect(w, r, "/dashboard/profile", http.StatusSeeOther)
		return
	}
	if err := sess.auth.UpdateUser(r.Context(), platform.ProfileUpdate{Name: &name}); err != nil {
		p.log.WithError(err).Warn("profile update failed")
	}
	http.Redirect(w, r, "/dashboard/profile", http.StatusSeeOther)
}

// patView decorates a PAT with its display predicates.
type patView struct {
	platform.PersonalAccessToken
	Expired      bool
	ExpiringSoon bool
}

func (p *Portal) handleTokens(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)

	tokens, err := sess.auth.Client().ListTokens(r.Context())
	if err != nil {
		p.log.WithError(err).Warn("token list fetch failed")
	}
	views := make([]patView, 0, len(tokens))
	for _, tok := range tokens {
		views = append(views, patView{
			PersonalAccessToken: tok,
			Expired:             platform.PATExpired(tok.ExpiresAt),
			ExpiringSoon:        platform.PATExpiringSoon(tok.ExpiresAt),
		})
	}

	p.renderTemplate(w, r, "tokens.html", "API Tokens", map[string]interface{}{
		"Tokens": views,
		// The raw value of a just-created token, shown exactly once.
		"NewToken": r.URL.Query().Get("new_token"),
	})
}

func (p *Portal) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)

	name := r.FormValue("name")
	if name == "" {
		sess.Error("Token name is required.")
		http.Redirect(w, r, "/dashboard/tokens", http.StatusSeeOther)
		return
	}
	params := platform.CreateTokenParams{Name: name}
	if raw := r.FormValue("expires_at"); raw != "" {
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			params.ExpiresAt = &ts
		}
	}

	tok, err := sess.auth.Client().CreateToken(r.Context(), params)
	if err != nil {
		p.log.WithError(err).Warn("token creation failed")
		sess.Error("Could not create the token. Please try again.")
		http.Redirect(w, r, "/dashboard/tokens", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard/tokens?new_token="+url.QueryEscape(tok.Token), http.StatusSeeOther)
}

func (p *Portal) handleRegenerateToken(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)
	id := chi.URLParam(r, "id")

	tok, err := sess.auth.Client().RegenerateToken(r.Context(), id)
	if err != nil {
		p.log.WithField("token_id", id).WithError(err).Warn("token regeneration failed")
		sess.Error("Could not regenerate the token.")
		http.Redirect(w, r, "/dashboard/tokens", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard/tokens?new_token="+url.QueryEscape(tok.Token), http.StatusSeeOther)
}

func (p *Portal) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	sess, _ := p.currentSession(r)
	id := chi.URLParam(r, "id")

	if err := sess.auth.Client().RevokeToken(r.Context(), id); err != nil {
		p.log.WithField("token_id", id).WithError(err).Warn("token revocation failed")
		sess.Error("Could not revoke the token.")
	} else {
		sess.Success("Token revoked.")
	}
	http.Redirect(w, r, "/dashboard/tokens", http.StatusSeeOther)
}

func (p *Portal) handleTool(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	sess, err := p.ensureSession(w, r)
	if err != nil {
		p.log.WithError(err).Error("creating session failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	sess.touch(r.URL.Path)

	gate := toolgate.New(sess.auth.Client(), p.log)
	result, item, err := gate.Evaluate(r.Context(), slug, p.config.Tool.NoLoginTool)
	if err != nil {
		p.log.WithField("slug", slug).WithError(err).Error("tool gate evaluation failed")
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	p.renderTemplate(w, r, "tool.html", p.config.Tool.Name, map[string]interface{}{
		"Slug":        slug,
		"Item":        item,
		"Render":      result.Decision == toolgate.DecisionRender || result.Decision == toolgate.DecisionRenderWithBanner,
		"Banner":      result.Decision == toolgate.DecisionRenderWithBanner,
		"Blocked":     result.Decision == toolgate.DecisionBlocked,
		"Unavailable": result.Decision == toolgate.DecisionUnavailable,
		"Action":      string(result.Action),
	})
}

func (p *Portal) handleConnectTool(w http.ResponseWriter, r *http.Request) {
	p.toolAction(w, r, "connect", func(sess *session, slug string) error {
		_, err := sess.auth.Client().ConnectTool(r.Context(), slug)
		return err
	})
}

func (p *Portal) handlePurchaseTool(w http.ResponseWriter, r *http.Request) {
	p.toolAction(w, r, "purchase", func(sess *session, slug string) error {
		_, err := sess.auth.Client().PurchaseTool(r.Context(), slug)
		return err
	})
}

func (p *Portal) toolAction(w http.ResponseWriter, r *http.Request, action string, fn func(*session, string) error) {
	slug := chi.URLParam(r, "slug")

	sess, ok := p.currentSession(r)
	if !ok || sess.auth.User() == nil {
		http.Redirect(w, r, "/auth?redirect="+url.QueryEscape("/tools/"+slug), http.StatusSeeOther)
		return
	}
	sess.touch(r.URL.Path)

	if err := fn(sess, slug); err != nil {
		p.log.WithField("slug", slug).WithField("action", action).WithError(err).Warn("tool action failed")
		sess.Error("That didn't work. Please try again.")
	} else {
		sess.Success("You now have access to this tool.")
		if err := sess.auth.RefreshUser(r.Context()); err != nil {
			p.log.WithError(err).Warn("user refresh after tool action failed")
		}
	}
	http.Redirect(w, r, "/tools/"+slug, http.StatusSeeOther)
}

// safeRedirect keeps post-auth navigation on this site.
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/dashboard"
	}
	return target
}
