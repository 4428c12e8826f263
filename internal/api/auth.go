package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	jwtSecret []byte
}

type contextKey string

const accountContextKey contextKey = "account"

func NewAuthService(jwtSecret []byte) *AuthService {
	return &AuthService{jwtSecret: jwtSecret}
}

// DefaultJWTSecret loads the signing secret from ~/.todolist/.jwt_secret,
// generating and persisting one on first run.
func DefaultJWTSecret() []byte {
	home, _ := os.UserHomeDir()
	secretPath := filepath.Join(home, ".todolist", ".jwt_secret")

	raw, err := os.ReadFile(secretPath)
	if err != nil {
		secret := make([]byte, 32)
		rand.Read(secret)
		os.MkdirAll(filepath.Dir(secretPath), 0700)
		os.WriteFile(secretPath, []byte(hex.EncodeToString(secret)), 0600)
		return secret
	}

	secret, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		slog.Warn("corrupt jwt secret file, regenerating", "error", err)
		secret = make([]byte, 32)
		rand.Read(secret)
		os.WriteFile(secretPath, []byte(hex.EncodeToString(secret)), 0600)
	}
	return secret
}

// HashPassword wraps bcrypt so handlers don't touch the library directly.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken issues a JWT whose subject is the account id.
func (a *AuthService) GenerateToken(accountID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": accountID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(7 * 24 * time.Hour).Unix(), // 7 days
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateToken verifies the JWT and returns the account id it carries.
func (a *AuthService) ValidateToken(tokenString string) (string, bool) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", false
	}
	return sub, true
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		accountID, ok := s.auth.ValidateToken(parts[1])
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), accountContextKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accountIDFrom returns the authenticated account id set by authMiddleware.
func accountIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(accountContextKey).(string)
	return id
}

// loginRateLimiter tracks failed auth attempts per IP.
type loginRateLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time // IP → timestamps of recent failures
	window   time.Duration
	max      int
}

func newLoginRateLimiter(max int, window time.Duration) *loginRateLimiter {
	return &loginRateLimiter{
		attempts: make(map[string][]time.Time),
		window:   window,
		max:      max,
	}
}

// allow returns true if the IP has not exceeded the rate limit.
func (rl *loginRateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	// Prune old entries
	recent := rl.attempts[ip][:0]
	for _, t := range rl.attempts[ip] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	rl.attempts[ip] = recent

	return len(recent) < rl.max
}

// record adds a failed attempt for the IP.
func (rl *loginRateLimiter) record(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.attempts[ip] = append(rl.attempts[ip], time.Now())
}

// reset clears attempts for the IP (called on successful login).
func (rl *loginRateLimiter) reset(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, ip)
}

// clientIP extracts the real client IP, checking reverse-proxy headers
// before falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First entry is the original client
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	// Strip port from RemoteAddr
	addr := r.RemoteAddr
	if i := strings.LastIndex(addr, ":"); i > 0 {
		return addr[:i]
	}
	return addr
}
