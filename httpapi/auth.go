package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const adminTokenTTL = time.Hour

// adminClaims is the JWT payload issued on a successful admin login.
type adminClaims struct {
	jwt.RegisteredClaims
}

// issueAdminToken signs a short-lived HS256 token for username.
func issueAdminToken(secret []byte, username string) (string, error) {
	now := time.Now()
	claims := adminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// parseAdminToken validates signature and expiry, returning the subject.
func parseAdminToken(secret []byte, raw string) (string, error) {
	token, err := jwt.ParseWithClaims(raw, &adminClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*adminClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	return claims.Subject, nil
}

// HashPassword bcrypt-hashes password, for seeding the admin account at
// startup from ADMIN_PASSWORD.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// adminLogin checks username/password against the single seeded admin
// account and returns a JWT on success. There is no user table: the Central
// Coordinator has exactly one operator-grade HTTP identity, mirroring the
// always-available stdin console it sits alongside.
func adminLogin(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.AdminHash == "" {
			writeError(w, http.StatusServiceUnavailable, "admin login not configured")
			return
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username != d.AdminUser || !checkPassword(d.AdminHash, req.Password) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		token, err := issueAdminToken(d.JWTSecret, req.Username)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
	}
}
