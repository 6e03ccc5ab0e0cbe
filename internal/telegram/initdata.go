// Package telegram verifies Telegram Mini App login payloads (initData) and
// extracts the stable external identity embedded in them.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadInitData means the payload is not a decodable query string.
	ErrBadInitData = errors.New("init data is malformed")

	// ErrNoHash means the payload carried no hash field to verify.
	ErrNoHash = errors.New("init data has no hash")

	// ErrBadHash means the payload's hash did not match the computed one.
	ErrBadHash = errors.New("init data hash mismatch")

	// ErrExpired means the payload's auth_date is older than the allowed TTL.
	ErrExpired = errors.New("init data expired")

	// ErrNoUser means the payload carried no parseable user profile.
	ErrNoUser = errors.New("init data has no user")
)

// Identity is the verified external identity extracted from initData.
type Identity struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	AuthDate   int64
}

// DisplayName joins the profile's first and last name.
func (i *Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// profile mirrors the JSON blob Telegram embeds under the "user" key.
type profile struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Verifier checks initData signatures against a bot token.
//
// An empty bot token disables signature verification entirely: payloads are
// trusted as-is. That mode exists for local development and must never be
// used in production.
type Verifier struct {
	botToken string
	ttl      time.Duration
	now      func() time.Time
}

// NewVerifier creates a Verifier. ttl bounds how old a payload's auth_date
// may be; zero disables the freshness check.
func NewVerifier(botToken string, ttl time.Duration) *Verifier {
	return &Verifier{botToken: botToken, ttl: ttl, now: time.Now}
}

// Enabled reports whether signature verification is active.
func (v *Verifier) Enabled() bool {
	return v.botToken != ""
}

// Verify validates the signed payload and returns the identity inside it.
// Every failure mode returns a nil identity and one of the sentinel errors;
// it never panics on malformed input.
func (v *Verifier) Verify(initData string) (*Identity, error) {
	pairs, params, err := parseInitData(initData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInitData, err)
	}

	if v.botToken != "" {
		providedHash := strings.ToLower(params["hash"])
		if providedHash == "" {
			return nil, ErrNoHash
		}
		expected := computeHash(dataCheckString(pairs), v.botToken)
		if !hmac.Equal([]byte(expected), []byte(providedHash)) {
			return nil, ErrBadHash
		}
	}

	authDate, _ := strconv.ParseInt(params["auth_date"], 10, 64)
	if v.ttl > 0 {
		if authDate == 0 || v.now().Unix()-authDate > int64(v.ttl.Seconds()) {
			return nil, ErrExpired
		}
	}

	var p profile
	if err := json.Unmarshal([]byte(params["user"]), &p); err != nil || p.ID == 0 {
		return nil, ErrNoUser
	}

	return &Identity{
		TelegramID: p.ID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		AuthDate:   authDate,
	}, nil
}

// pair is one decoded key/value from the query string, order preserved.
type pair struct {
	key   string
	value string
}

// parseInitData decodes the payload as a query string, keeping blank values
// and duplicate keys. Returns the ordered pairs and a last-wins map.
func parseInitData(initData string) ([]pair, map[string]string, error) {
	var pairs []pair
	params := make(map[string]string)
	for _, field := range strings.Split(initData, "&") {
		if field == "" {
			continue
		}
		k, val, _ := strings.Cut(field, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, nil, err
		}
		value, err := url.QueryUnescape(val)
		if err != nil {
			return nil, nil, err
		}
		pairs = append(pairs, pair{key: key, value: value})
		params[key] = value
	}
	return pairs, params, nil
}

// dataCheckString builds the string Telegram signs: all fields except hash
// and signature, sorted by key, joined as key=value lines.
func dataCheckString(pairs []pair) string {
	kept := make([]pair, 0, len(pairs))
	for _, p := range pairs {
		if p.key == "hash" || p.key == "signature" {
			continue
		}
		kept = append(kept, p)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].key < kept[j].key })

	lines := make([]string, len(kept))
	for i, p := range kept {
		lines[i] = p.key + "=" + p.value
	}
	return strings.Join(lines, "\n")
}

// computeHash derives the per-bot secret (HMAC-SHA256 of the bot token keyed
// by the "WebAppData" domain separator) and signs the data-check string with
// it, hex-encoded.
func computeHash(dcs, botToken string) string {
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dcs))
	return hex.EncodeToString(mac.Sum(nil))
}
