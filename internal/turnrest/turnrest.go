// Package turnrest mints coturn-compatible ephemeral TURN credentials
// (draft-uberti-behave-turn-rest, coturn's use-auth-secret mode).
//
//	username   = <unix_expiry>:<prefix>:<session_id>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// The expiry is the server's UTC clock plus the configured TTL.
package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidSessionID = errors.New("session id must be non-empty and must not contain ':'")

type Config struct {
	SharedSecret   string
	TTL            time.Duration
	UsernamePrefix string

	// Now and SessionID default to time.Now and a random UUID.
	Now       func() time.Time
	SessionID func() string
}

type Generator struct {
	secret    []byte
	ttl       time.Duration
	prefix    string
	now       func() time.Time
	sessionID func() string
}

// Credentials is one TURN username/credential pair as handed to a browser.
type Credentials struct {
	Username   string
	Credential string
	Expires    time.Time
}

func New(cfg Config) (*Generator, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("shared secret is required")
	}
	if cfg.TTL < time.Second {
		return nil, errors.New("TTL must be at least one second")
	}
	if cfg.UsernamePrefix == "" {
		return nil, errors.New("username prefix is required")
	}
	if strings.Contains(cfg.UsernamePrefix, ":") {
		return nil, errors.New("username prefix must not contain ':'")
	}
	g := &Generator{
		secret:    []byte(cfg.SharedSecret),
		ttl:       cfg.TTL.Truncate(time.Second),
		prefix:    cfg.UsernamePrefix,
		now:       cfg.Now,
		sessionID: cfg.SessionID,
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.sessionID == nil {
		g.sessionID = uuid.NewString
	}
	return g, nil
}

// Mint returns credentials bound to sessionID.
func (g *Generator) Mint(sessionID string) (Credentials, error) {
	if sessionID == "" || strings.Contains(sessionID, ":") {
		return Credentials{}, ErrInvalidSessionID
	}
	expires := g.now().UTC().Truncate(time.Second).Add(g.ttl)
	username := strconv.FormatInt(expires.Unix(), 10) + ":" + g.prefix + ":" + sessionID
	return Credentials{
		Username:   username,
		Credential: sign(g.secret, username),
		Expires:    expires,
	}, nil
}

// MintRandom returns credentials bound to a fresh random session id.
func (g *Generator) MintRandom() (Credentials, error) {
	return g.Mint(g.sessionID())
}

func sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
