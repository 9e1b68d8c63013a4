package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/accountauth"
	"github.com/MrEthical07/accountauth/middleware"
	"github.com/go-chi/chi/v5"
)

type updateProfileRequest struct {
	Name *string `json:"name" validate:"omitempty,max=100"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type recoveryEmailRequest struct {
	RecoveryEmail string `json:"recoveryEmail" validate:"required,email"`
}

type userResponse struct {
	Message string                   `json:"message,omitempty"`
	User    *accountauth.AccountView `json:"user"`
}

type imageResponse struct {
	Message string `json:"message,omitempty"`
	Key     string `json:"key,omitempty"`
	URL     string `json:"url,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *Handler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: view})
}

func (h *Handler) GetUserByEmail(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetAccountByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: view})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	view, err := h.engine.GetAccount(r.Context(), p.AccountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: view})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())

	view, err := h.engine.UpdateProfile(r.Context(), p.AccountID, accountauth.ProfileUpdate{Name: req.Name})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "Profile updated successfully", User: view})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())

	if err := h.engine.ChangePassword(r.Context(), p.AccountID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

func (h *Handler) UpdateRecoveryEmail(w http.ResponseWriter, r *http.Request) {
	var req recoveryEmailRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, _ := middleware.PrincipalFromContext(r.Context())

	view, err := h.engine.UpdateRecoveryEmail(r.Context(), p.AccountID, req.RecoveryEmail)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "Recovery email updated successfully", User: view})
}

// UploadProfileImage accepts a multipart form with the file in the image
// field.
func (h *Handler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	limit := h.engine.MaxProfileImageBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+maxBodyBytes)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(w, "image is too large")
			return
		}
		badRequest(w, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		badRequest(w, "image is required")
		return
	}
	defer file.Close()

	p, _ := middleware.PrincipalFromContext(r.Context())
	key, err := h.engine.UploadProfileImage(r.Context(), p.AccountID, header.Filename, file, header.Size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Message: "Profile image uploaded successfully", Key: key})
}

func (h *Handler) DownloadProfileImage(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFromContext(r.Context())
	url, err := h.engine.ProfileImageURL(r.Context(), p.AccountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{URL: url})
}
