package adapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/castlegem/elasticidentity/internal/entity"
	"github.com/castlegem/elasticidentity/internal/usecase"
)

// UserHandler exposes the auth flows as a JSON HTTP API.
type UserHandler struct {
	usecase *usecase.UserUsecase
	logger  *zap.Logger
}

func NewUserHandler(uc *usecase.UserUsecase, logger *zap.Logger) *UserHandler {
	return &UserHandler{usecase: uc, logger: logger.Named("UserHandler")}
}

func (h *UserHandler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", h.handleRegister)
	mux.HandleFunc("/login", h.handleLogin)
	mux.HandleFunc("/logout", h.handleLogout)
	mux.HandleFunc("/profile", h.handleProfile)
	mux.HandleFunc("/password", h.handleChangePassword)
	mux.HandleFunc("/email/request", h.handleRequestEmailConfirmation)
	mux.HandleFunc("/email/confirm", h.handleConfirmEmail)
	mux.HandleFunc("/users", h.handleListUsers)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

type userResponse struct {
	UserName         string         `json:"userName"`
	Email            *emailResponse `json:"email,omitempty"`
	Phone            *phoneResponse `json:"phone,omitempty"`
	Roles            []string       `json:"roles,omitempty"`
	TwoFactorEnabled bool           `json:"twoFactorEnabled"`
}

type emailResponse struct {
	Address   string `json:"address"`
	Confirmed bool   `json:"confirmed"`
}

type phoneResponse struct {
	Number    string `json:"number"`
	Confirmed bool   `json:"confirmed"`
}

func toUserResponse(u *entity.User) userResponse {
	resp := userResponse{
		UserName:         u.UserName(),
		Roles:            u.Roles(),
		TwoFactorEnabled: u.TwoFactorEnabled,
	}
	if u.Email != nil {
		resp.Email = &emailResponse{Address: u.Email.Address, Confirmed: u.Email.Confirmed}
	}
	if u.Phone != nil {
		resp.Phone = &phoneResponse{Number: u.Phone.Number, Confirmed: u.Phone.Confirmed}
	}
	return resp
}

func (h *UserHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}
	user, err := h.usecase.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *UserHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	token, err := h.usecase.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *UserHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	username, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if err := h.usecase.Logout(r.Context(), username); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	username, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	user, err := h.usecase.GetProfile(r.Context(), username)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	username, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	if err := h.usecase.ChangePassword(r.Context(), username, req.OldPassword, req.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) handleRequestEmailConfirmation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	username, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if err := h.usecase.RequestEmailConfirmation(r.Context(), username); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *UserHandler) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	username, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}
	if err := h.usecase.ConfirmEmail(r.Context(), username, req.Code); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, ok := h.authenticate(w, r); !ok {
		return
	}
	users, err := h.usecase.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// authenticate resolves the bearer token to a username, writing a 401 on
// failure.
func (h *UserHandler) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return "", false
	}
	username, err := h.usecase.VerifyToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return "", false
	}
	return username, true
}

func (h *UserHandler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *UserHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrUsernameTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, usecase.ErrInvalidCredentials), errors.Is(err, usecase.ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, usecase.ErrUserNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, usecase.ErrInvalidCode), errors.Is(err, entity.ErrEmailNotSet), errors.Is(err, entity.ErrPhoneNotSet):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("internal error", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
