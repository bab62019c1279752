package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0).UTC() }
}

func TestMint_DeterministicWithFixedClock(t *testing.T) {
	g, err := New(Config{
		SharedSecret:   "shared-secret",
		TTL:            time.Hour,
		UsernamePrefix: "aero",
		Now:            fixedClock(1_700_000_000),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	creds, err := g.Mint("session123")
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if got, want := creds.Expires.Unix(), int64(1_700_003_600); got != want {
		t.Fatalf("Expires=%d, want %d", got, want)
	}
	wantUsername := "1700003600:aero:session123"
	if creds.Username != wantUsername {
		t.Fatalf("Username=%q, want %q", creds.Username, wantUsername)
	}

	mac := hmac.New(sha1.New, []byte("shared-secret"))
	_, _ = mac.Write([]byte(wantUsername))
	if want := base64.StdEncoding.EncodeToString(mac.Sum(nil)); creds.Credential != want {
		t.Fatalf("Credential=%q, want %q", creds.Credential, want)
	}
}

func TestMint_RejectsSessionIDsThatBreakTheUsernameFormat(t *testing.T) {
	g, err := New(Config{SharedSecret: "s", TTL: time.Minute, UsernamePrefix: "aero"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, sid := range []string{"", "a:b"} {
		if _, err := g.Mint(sid); !errors.Is(err, ErrInvalidSessionID) {
			t.Fatalf("Mint(%q) err=%v, want %v", sid, err, ErrInvalidSessionID)
		}
	}
}

func TestMintRandom_UsesSessionIDSource(t *testing.T) {
	g, err := New(Config{
		SharedSecret:   "s",
		TTL:            10 * time.Second,
		UsernamePrefix: "pfx",
		Now:            fixedClock(42),
		SessionID:      func() string { return "fixed" },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	creds, err := g.MintRandom()
	if err != nil {
		t.Fatalf("MintRandom: %v", err)
	}
	if creds.Username != "52:pfx:fixed" {
		t.Fatalf("Username=%q, want %q", creds.Username, "52:pfx:fixed")
	}
}

func TestMintRandom_DefaultSessionIDsAreUnique(t *testing.T) {
	g, err := New(Config{SharedSecret: "s", TTL: time.Minute, UsernamePrefix: "aero"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := g.MintRandom()
	if err != nil {
		t.Fatalf("MintRandom: %v", err)
	}
	b, err := g.MintRandom()
	if err != nil {
		t.Fatalf("MintRandom: %v", err)
	}
	if a.Username == b.Username {
		t.Fatalf("two random mints share username %q", a.Username)
	}
	if parts := strings.Split(a.Username, ":"); len(parts) != 3 || parts[1] != "aero" {
		t.Fatalf("Username=%q, want <expiry>:aero:<sid>", a.Username)
	}
}

func TestNew_ValidatesConfig(t *testing.T) {
	for name, cfg := range map[string]Config{
		"no secret":    {TTL: time.Minute, UsernamePrefix: "aero"},
		"short ttl":    {SharedSecret: "s", TTL: time.Millisecond, UsernamePrefix: "aero"},
		"no prefix":    {SharedSecret: "s", TTL: time.Minute},
		"colon prefix": {SharedSecret: "s", TTL: time.Minute, UsernamePrefix: "a:b"},
	} {
		if _, err := New(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
