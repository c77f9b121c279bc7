package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/metrofound/lostfound-api/api"
	"github.com/metrofound/lostfound-api/databases"
	"github.com/metrofound/lostfound-api/models"
	"github.com/metrofound/lostfound-api/notifications"
	templates "github.com/metrofound/lostfound-api/templates/html"
)

type staffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type staffLoginResponse struct {
	Token string `json:"token"`
	Staff struct {
		ID       string   `json:"id"`
		Email    string   `json:"email"`
		Roles    []string `json:"roles"`
		Stations []string `json:"stations"`
	} `json:"staff"`
}

// Staff represents the staff account handler
type Staff struct {
	SDB    databases.StaffDatabase
	RDB    databases.StaffResetDatabase
	Mailer notifications.Mailer
}

// StaffLoginHandler handles staff login via email/password and returns a JWT
func (h Staff) StaffLoginHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req staffLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid request"})
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "email and password required"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	staff, err := h.SDB.FindOne(ctx, bson.M{"email": email, "active": true})
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(req.Password)); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{
			Success: false,
			Error:   "Invalid credentials",
			Code:    "INVALID_CREDENTIALS",
		})
		return
	}

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "server misconfigured"})
		return
	}

	claims := jwt.MapClaims{
		"sub":   staff.ID.Hex(),
		"email": staff.Email,
		"roles": staff.Roles,
		"scope": "staff",
		"typ":   "access",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "token generation failed"})
		return
	}

	var resp staffLoginResponse
	resp.Token = signed
	resp.Staff.ID = staff.ID.Hex()
	resp.Staff.Email = staff.Email
	resp.Staff.Roles = staff.Roles
	resp.Staff.Stations = staff.Stations

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

type forgotRequest struct {
	Email string `json:"email"`
}

// StaffForgotPasswordHandler sends a password reset email if the staff
// account exists (no-op otherwise so the endpoint cannot be used to
// enumerate accounts)
func (h Staff) StaffForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req forgotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid request"})
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "email required"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	staff, err := h.SDB.FindOne(ctx, bson.M{"email": email, "active": true})
	if err == nil {
		plain, hashHex, genErr := generateResetToken()
		if genErr == nil {
			_, _ = h.RDB.InsertOne(ctx, models.StaffPasswordReset{
				StaffID:   staff.ID,
				TokenHash: hashHex,
				ExpiresAt: primitive.NewDateTimeFromTime(time.Now().Add(1 * time.Hour)),
				CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
			})
			if h.Mailer != nil {
				link := buildResetLink(os.Getenv("PUBLIC_WEB_BASE_URL"), plain)
				plainBody := "Reset your staff password using this link: " + link
				if err := h.Mailer.Send(email, "MetroFound Staff Password Reset", plainBody, templates.RenderGenericEmail("Staff Password Reset", plainBody)); err != nil {
					zap.S().Errorw("failed to send reset email", "email", email, "error", err)
				}
			}
		}
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "If that staff email exists, a reset link has been sent."})
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// StaffResetPasswordHandler resets the staff password with a valid token
func (h Staff) StaffResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid request"})
		return
	}

	token := strings.TrimSpace(req.Token)
	password := req.Password
	if token == "" || password == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "token and password required"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	hashHex := hashToken(token)
	reset, err := h.RDB.FindOne(ctx, bson.M{
		"tokenHash": hashHex,
		"usedAt":    bson.M{"$exists": false},
		"expiresAt": bson.M{"$gt": primitive.NewDateTimeFromTime(time.Now())},
	})
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid or expired token"})
		return
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "could not update password"})
		return
	}

	_, err = h.SDB.UpdateOne(ctx, bson.M{"_id": reset.StaffID}, bson.M{"$set": bson.M{
		"passwordHash": string(newHash),
		"updatedAt":    primitive.NewDateTimeFromTime(time.Now()),
	}})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "could not update password"})
		return
	}
	// Mark token used
	_, _ = h.RDB.UpdateOne(ctx, bson.M{"_id": reset.ID}, bson.M{"$set": bson.M{"usedAt": primitive.NewDateTimeFromTime(time.Now())}})

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "password updated"})
}

// StaffAuthMiddleware verifies the staff JWT on triage routes
func StaffAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		header := r.Header.Get("Authorization")
		parts := strings.Split(header, "Bearer ")
		if len(parts) != 2 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "missing bearer token"}`))
			return
		}

		jwtSecret := []byte(os.Getenv("JWT_SECRET"))
		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			zap.S().Errorw("invalid staff token", "url", r.URL, "error", err)
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || claims["scope"] != "staff" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": "staff scope required"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// helpers
func generateResetToken() (plain string, hashHex string, err error) {
	b := make([]byte, 32)
	_, err = rand.Read(b)
	if err != nil {
		return "", "", err
	}
	pln := hex.EncodeToString(b)
	return pln, hashToken(pln), nil
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func buildResetLink(baseURL, token string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://www.metrofound.example"
	}
	return base + "/staff/reset-password?token=" + token
}
