package httpapi

import (
	"net/http"

	"github.com/TaherBala2507/mini-crm/internal/auth"
)

type registerRequest struct {
	OrganizationName string `json:"organization_name"`
	Domain           string `json:"domain"`
	AdminName        string `json:"admin_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	org, admin, err := a.auth.RegisterOrganization(r.Context(), auth.RegisterOrganizationInput{
		OrgName:   req.OrganizationName,
		Domain:    req.Domain,
		AdminName: req.AdminName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"organization": org,
		"admin":        admin,
	})
}

type loginRequest struct {
	Domain   string `json:"domain"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	pair, user, err := a.auth.Login(r.Context(), req.Domain, req.Email, req.Password)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": pair,
		"user":   user,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": pair})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := a.auth.Logout(r.Context(), actor, req.RefreshToken); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := a.auth.ChangePassword(r.Context(), actor, req.CurrentPassword, req.NewPassword); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Domain string `json:"domain"`
	Email  string `json:"email"`
}

// handleForgotPassword always answers 202 with the same body on well-formed
// input so the endpoint cannot confirm which accounts exist. The reset
// plaintext never enters the response; it is delivered out of band.
func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	token, err := a.auth.ForgotPassword(r.Context(), req.Domain, req.Email)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	if token != "" {
		a.log.WithField("domain", req.Domain).Info("password reset token issued")
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := a.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		a.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type verifyEmailRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	user, err := a.auth.VerifyEmailAndActivate(r.Context(), req.Token, req.Password)
	if err != nil {
		a.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.principal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        actor.User,
		"permissions": actor.Permissions.Sorted(),
	})
}
