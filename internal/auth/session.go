// Package auth handles broker session establishment. Brokers require a
// fresh TOTP code per login, and sessions expire daily, so the live
// engine logs in again each morning before the market opens.
package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/pquerna/otp/totp"
)

// Credentials are the broker login inputs. TOTPSecret is the base32
// seed shown when enabling 2FA on the broker account.
type Credentials struct {
	APIKey     string
	ClientCode string
	PIN        string
	TOTPSecret string
}

// Tokens is what a successful login yields.
type Tokens struct {
	AuthToken string
	FeedToken string
}

// LoginFunc performs the actual broker API call with a generated TOTP code.
type LoginFunc func(ctx context.Context, creds Credentials, totpCode string) (Tokens, error)

// Manager retries broker logins until one succeeds or the context ends.
type Manager struct {
	creds      Credentials
	login      LoginFunc
	retryDelay time.Duration
}

func NewManager(creds Credentials, login LoginFunc) *Manager {
	return &Manager{
		creds:      creds,
		login:      login,
		retryDelay: 30 * time.Second,
	}
}

// Code generates the TOTP code for the given instant.
func (m *Manager) Code(t time.Time) (string, error) {
	return totp.GenerateCode(m.creds.TOTPSecret, t)
}

// Login keeps trying until the broker accepts a session. Each attempt
// generates a fresh TOTP code; a stale code is the most common failure.
func (m *Manager) Login(ctx context.Context) (Tokens, error) {
	for {
		code, err := m.Code(time.Now())
		if err != nil {
			return Tokens{}, err
		}

		tokens, err := m.login(ctx, m.creds, code)
		if err == nil {
			if tokens.AuthToken == "" {
				err = errors.New("broker returned empty auth token")
			} else {
				log.Printf("[auth] session established for %s", m.creds.ClientCode)
				return tokens, nil
			}
		}

		log.Printf("[auth] login failed: %v, retrying in %v", err, m.retryDelay)
		select {
		case <-ctx.Done():
			return Tokens{}, ctx.Err()
		case <-time.After(m.retryDelay):
		}
	}
}
