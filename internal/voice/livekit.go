package voice

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quizhive/quizsync/internal/domain"
)

const tokenTTL = 6 * time.Hour

var ErrNoCredentials = errors.New("livekit credentials missing")

// Provider mints scoped access tokens for the managed SFU. Degradation is a
// derived computation, never persisted: missing credentials or the forced
// override flag make every health query report degraded.
type Provider struct {
	apiKey    string
	apiSecret string
	url       string
	forced    atomic.Bool
}

func NewProvider(apiKey, apiSecret, url string) *Provider {
	return &Provider{apiKey: apiKey, apiSecret: apiSecret, url: url}
}

func (p *Provider) URL() string { return p.url }

func (p *Provider) HasCredentials() bool {
	return p.apiKey != "" && p.apiSecret != ""
}

// ForceFallback flips the process-wide override; all subsequent health checks
// report degraded until restart.
func (p *Provider) ForceFallback() {
	p.forced.Store(true)
}

func (p *Provider) Degraded() bool {
	return p.forced.Load() || !p.HasCredentials() || p.url == ""
}

type videoGrant struct {
	Room           string `json:"room,omitempty"`
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	CanPublish     bool   `json:"canPublish"`
	CanSubscribe   bool   `json:"canSubscribe"`
	CanPublishData bool   `json:"canPublishData"`
}

type accessClaims struct {
	Video    videoGrant `json:"video"`
	Metadata string     `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken mints a JWT granting publish/subscribe/data rights for one
// user in one room, in the claim shape the managed SFU expects.
func (p *Provider) GenerateToken(user domain.UserID, room domain.RoomID) (string, error) {
	if !p.HasCredentials() {
		return "", ErrNoCredentials
	}
	now := time.Now()
	claims := accessClaims{
		Video: videoGrant{
			Room:           string(room),
			RoomJoin:       true,
			CanPublish:     true,
			CanSubscribe:   true,
			CanPublishData: true,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.apiKey,
			Subject:   string(user),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(p.apiSecret))
}

type ProviderHealth struct {
	Status   string `json:"status"`
	Forced   bool   `json:"forced"`
	HasCreds bool   `json:"hasCreds"`
	URLSet   bool   `json:"urlSet"`
}

func (p *Provider) Health() ProviderHealth {
	status := "ok"
	if p.Degraded() {
		status = "degraded"
	}
	return ProviderHealth{
		Status:   status,
		Forced:   p.forced.Load(),
		HasCreds: p.HasCredentials(),
		URLSet:   p.url != "",
	}
}
