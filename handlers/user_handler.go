package handlers

import (
	"net/http"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

type UpdateProfileRequest struct {
	Name           *string   `json:"name"`
	Bio            *string   `json:"bio"`
	Skills         *[]string `json:"skills"`
	ProfilePicture *string   `json:"profilePicture"`
	Role           *string   `json:"role"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), currentUser(r), services.ProfileUpdate{
		Name:           req.Name,
		Bio:            req.Bio,
		Skills:         req.Skills,
		ProfilePicture: req.ProfilePicture,
		Role:           req.Role,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), currentUser(r), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated")
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		logging.Logger.Warnf("Event ID: ACCOUNT_DELETE_REFUSED, Description: Account %s was not deleted: %v", userID.Hex(), err)
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Account deleted")
}

// SearchUsers returns public summaries matching ?q= by name or email.
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.SearchUsers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Summary())
}
