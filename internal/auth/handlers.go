package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stationdesk/casedesk-backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultSessionTTL = 6 * time.Hour

// Handler serves the desk login endpoints.
type Handler struct {
	DB            *gorm.DB
	SessionTTL    time.Duration
	SecureCookies bool
}

func NewHandler(db *gorm.DB, ttl time.Duration, secure bool) *Handler {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Handler{DB: db, SessionTTL: ttl, SecureCookies: secure}
}

// HashPassword is shared with the seeder so both hash the same way.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     "session_id",
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.SecureCookies,
	}
	if h.SecureCookies {
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var account Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid Request Format")
		return
	}

	account.Username = strings.TrimSpace(account.Username)
	if account.Username == "" || account.Password == "" {
		utils.WriteError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if account.Role == "" {
		account.Role = RoleDispatcher
	}
	if account.Role != RoleDispatcher && account.Role != RoleAdmin {
		utils.WriteError(w, http.StatusBadRequest, "Unknown role")
		return
	}

	var existing Account
	err := h.DB.WithContext(r.Context()).First(&existing, "username = ?", account.Username).Error
	if err == nil {
		utils.WriteError(w, http.StatusConflict, "Username already taken")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to check username")
		return
	}

	hashed, err := HashPassword(account.Password)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Server error hashing password")
		return
	}
	account.HashedPassword = hashed
	account.Password = ""
	account.UserID = uuid.NewString()

	if err := h.DB.WithContext(r.Context()).Create(&account).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to register account")
		return
	}

	log.Printf("[auth] registered %s account %q", account.Role, account.Username)
	utils.WriteJSON(w, http.StatusCreated, map[string]string{
		"user_id":  account.UserID,
		"username": account.Username,
		"role":     account.Role,
	})
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid Data")
		return
	}

	var account Account
	if err := h.DB.WithContext(r.Context()).First(&account, "username = ?", creds.Username).Error; err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.HashedPassword), []byte(creds.Password)); err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}

	// One live session per account; logging in again replaces it.
	session := Session{
		SessionID: uuid.NewString(),
		UserID:    account.UserID,
		ExpiresAt: time.Now().Add(h.SessionTTL),
	}
	err := h.DB.WithContext(r.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"session_id", "expires_at"}),
	}).Create(&session).Error
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	http.SetCookie(w, h.sessionCookie(session.SessionID, int(h.SessionTTL.Seconds())))
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id":  account.UserID,
		"username": account.Username,
		"role":     account.Role,
	})
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.DB.WithContext(r.Context()).Where("user_id = ?", userID).Delete(&Session{}).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to end session")
		return
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

type MeResponse struct {
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	Role      string  `json:"role"`
	OfficerID *string `json:"officer_id,omitempty"`
}

func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var account Account
	if err := h.DB.WithContext(r.Context()).First(&account, "user_id = ?", userID).Error; err != nil {
		utils.WriteError(w, http.StatusNotFound, "Couldn't find account")
		return
	}

	utils.WriteJSON(w, http.StatusOK, MeResponse{
		UserID:    account.UserID,
		Username:  account.Username,
		Role:      account.Role,
		OfficerID: account.OfficerID,
	})
}

func (h *Handler) UpdatePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}

	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
		utils.WriteError(w, http.StatusBadRequest, "Current and new password are required")
		return
	}

	var account Account
	if err := h.DB.WithContext(r.Context()).First(&account, "user_id = ?", userID).Error; err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Couldn't find account")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.HashedPassword), []byte(req.CurrentPassword)); err != nil {
		utils.WriteError(w, http.StatusUnauthorized, "Invalid current password")
		return
	}

	hashed, err := HashPassword(req.NewPassword)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Server error hashing password")
		return
	}

	if err := h.DB.WithContext(r.Context()).Model(&account).Update("hashed_password", hashed).Error; err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}
