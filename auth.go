package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const (
	defaultInviteTTL = 24 * time.Hour
	bcryptCost       = 10
	passwordHeader   = "X-Room-Password"
	secretSetting    = "invite_secret"
	joinRateWindow   = 60 * time.Second
	maxJoinAttempts  = 10
)

// InviteClaims is the payload of an invite token.
type InviteClaims struct {
	Session string `json:"sid"`
	jwt.RegisteredClaims
}

// Auth guards the join endpoint: invite tokens, an optional room password
// and a per-IP attempt limit.
type Auth struct {
	secret   []byte
	passHash []byte
	ttl      time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	attempts map[string]*rate.Limiter
}

// NewAuth builds the guard. The signing secret is persisted in db when one is
// given so invites survive a host restart. An empty password disables the
// password check.
func NewAuth(db *DB, password string, ttl time.Duration, log zerolog.Logger) (*Auth, error) {
	if ttl <= 0 {
		ttl = defaultInviteTTL
	}
	a := &Auth{
		ttl:      ttl,
		log:      log.With().Str("component", "auth").Logger(),
		attempts: make(map[string]*rate.Limiter),
	}
	secret, err := loadOrCreateSecret(db, a.log)
	if err != nil {
		return nil, err
	}
	a.secret = secret
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash room password: %w", err)
		}
		a.passHash = hash
	}
	return a, nil
}

func loadOrCreateSecret(db *DB, log zerolog.Logger) ([]byte, error) {
	if db != nil {
		if h := db.GetSetting(secretSetting); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b, nil
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate invite secret: %w", err)
	}
	if db != nil {
		if err := db.SetSetting(secretSetting, hex.EncodeToString(secret)); err != nil {
			log.Warn().Err(err).Msg("could not persist invite secret")
		}
	}
	return secret, nil
}

// IssueInvite signs a token admitting clients to session until the TTL runs out.
func (a *Auth) IssueInvite(session string, now time.Time) (string, error) {
	claims := InviteClaims{
		Session: session,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateInvite checks a token and returns the session it admits to.
func (a *Auth) ValidateInvite(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidInvite
	}
	var claims InviteClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInvite, err)
	}
	if !token.Valid || claims.Session == "" {
		return "", ErrInvalidInvite
	}
	return claims.Session, nil
}

// CheckPassword compares a supplied room password with the configured one.
func (a *Auth) CheckPassword(password string) error {
	if a.passHash == nil {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword(a.passHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrBadPassword
		}
		return fmt.Errorf("check password: %w", err)
	}
	return nil
}

// AllowJoin rate limits join attempts per remote IP.
func (a *Auth) AllowJoin(ip string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	lim, ok := a.attempts[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Every(joinRateWindow/maxJoinAttempts), maxJoinAttempts)
		a.attempts[ip] = lim
	}
	return lim.AllowN(now, 1)
}
