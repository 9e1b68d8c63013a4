package httpapi

import (
	"net/http"

	"github.com/MrEthical07/accountauth"
	"github.com/MrEthical07/accountauth/middleware"
)

type registerRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Name          string `json:"name" validate:"max=100"`
	Password      string `json:"password"`
	LoginProvider string `json:"loginProvider" validate:"omitempty,oneof=password google github"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyMFARequest struct {
	Email     string `json:"email" validate:"omitempty,email"`
	Session   string `json:"session" validate:"required"`
	Challenge string `json:"challenge" validate:"required"`
	Code      string `json:"code" validate:"required"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,numeric"`
}

type resetPasswordRequest struct {
	Token       string `json:"resetToken" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type loginResponse struct {
	Message        string                      `json:"message"`
	AccessToken    string                      `json:"accessToken,omitempty"`
	MFARequired    bool                        `json:"mfaRequired"`
	Challenge      string                      `json:"challenge,omitempty"`
	Session        string                      `json:"session,omitempty"`
	ProviderTokens *accountauth.ProviderTokens `json:"providerTokens,omitempty"`
	User           *accountauth.AccountView    `json:"user,omitempty"`
}

type resetTokenResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken"`
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.Register(r.Context(), accountauth.RegisterInput{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		LoginMethod: accountauth.LoginMethod{Provider: accountauth.LoginProvider(req.LoginProvider)},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Message: res.Message, UserID: res.AccountID})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: res.Message})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeLogin(w, res)
}

func (h *Handler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	var req verifyMFARequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.CompleteMFA(r.Context(), accountauth.CompleteMFAInput{
		Session:   req.Session,
		Challenge: req.Challenge,
		Code:      req.Code,
		Email:     req.Email,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeLogin(w, res)
}

func (h *Handler) writeLogin(w http.ResponseWriter, res *accountauth.LoginResult) {
	if res.MFARequired {
		writeJSON(w, http.StatusOK, loginResponse{
			Message:     "MFA verification required",
			MFARequired: true,
			Challenge:   res.Challenge,
			Session:     res.Session,
		})
		return
	}

	h.setTokenCookies(w, res.AccessToken, res.RefreshToken)
	writeJSON(w, http.StatusOK, loginResponse{
		Message:        "Login successful",
		AccessToken:    res.AccessToken,
		ProviderTokens: res.Provider,
		User:           res.Account,
	})
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.ResendVerification(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Verification email sent"})
}

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "OTP sent to your email"})
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.ResendOTP(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "OTP resent to your email"})
}

func (h *Handler) VerifyPasswordResetOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.engine.VerifyPasswordResetOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resetTokenResponse{Message: "OTP verified successfully", ResetToken: token})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.engine.ResetPassword(r.Context(), accountauth.ResetPasswordInput{
		Token:       req.Token,
		NewPassword: req.NewPassword,
		Email:       req.Email,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successful. You can now log in with your new password."})
}

// RefreshToken reads the refresh token from its cookie, or from the body
// for clients that cannot hold cookies.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, refreshCookie)
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if !h.decode(w, r, &req) {
			return
		}
		token = req.RefreshToken
	}

	res, err := h.engine.Refresh(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setTokenCookies(w, res.AccessToken, res.RefreshToken)
	writeJSON(w, http.StatusOK, accessTokenResponse{AccessToken: res.AccessToken})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	_ = h.engine.Logout(r.Context(), cookieValue(r, refreshCookie), middleware.AccessToken(r))
	h.clearTokenCookies(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}
