package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"
)

const testBotToken = "12345:test-bot-token"

// signInitData builds a signed initData payload the way Telegram does.
func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	// Sort keys the simple way; the test sets never collide on prefixes.
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}

	dcs := ""
	for i, k := range keys {
		if i > 0 {
			dcs += "\n"
		}
		dcs += k + "=" + fields[k]
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dcs))
	hash := hex.EncodeToString(mac.Sum(nil))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hash)
	return values.Encode()
}

func validFields(authDate int64) map[string]string {
	return map[string]string{
		"auth_date":     strconv.FormatInt(authDate, 10),
		"query_id":      "AAHdF6IQAAAAAN0XohDhrOrc",
		"chat_instance": "-3788475317572404878",
		"user":          `{"id":42,"first_name":"Ivan","last_name":"Petrov","username":"ivanp"}`,
	}
}

func TestVerify(t *testing.T) {
	now := time.Now().Unix()
	v := NewVerifier(testBotToken, 24*time.Hour)

	identity, err := v.Verify(signInitData(t, testBotToken, validFields(now)))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if identity.TelegramID != 42 {
		t.Errorf("TelegramID = %d, want 42", identity.TelegramID)
	}
	if identity.Username != "ivanp" {
		t.Errorf("Username = %s, want ivanp", identity.Username)
	}
	if identity.DisplayName() != "Ivan Petrov" {
		t.Errorf("DisplayName = %q, want %q", identity.DisplayName(), "Ivan Petrov")
	}
	if identity.AuthDate != now {
		t.Errorf("AuthDate = %d, want %d", identity.AuthDate, now)
	}
}

func TestVerifyFailures(t *testing.T) {
	now := time.Now().Unix()
	v := NewVerifier(testBotToken, 24*time.Hour)

	tests := []struct {
		name     string
		initData string
		wantErr  error
	}{
		{
			name:     "broken percent encoding",
			initData: "user=%zz",
			wantErr:  ErrBadInitData,
		},
		{
			name:     "missing hash",
			initData: "auth_date=" + strconv.FormatInt(now, 10) + "&user=%7B%22id%22%3A42%7D",
			wantErr:  ErrNoHash,
		},
		{
			name:     "signed with the wrong bot token",
			initData: signInitData(t, "999:other-token", validFields(now)),
			wantErr:  ErrBadHash,
		},
		{
			name: "expired auth_date",
			initData: signInitData(t, testBotToken, func() map[string]string {
				f := validFields(now - int64((48 * time.Hour).Seconds()))
				return f
			}()),
			wantErr: ErrExpired,
		},
		{
			name: "no user profile",
			initData: signInitData(t, testBotToken, map[string]string{
				"auth_date": strconv.FormatInt(now, 10),
			}),
			wantErr: ErrNoUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := v.Verify(tt.initData)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if identity != nil {
				t.Error("expected nil identity on failure")
			}
		})
	}
}

func TestVerifyTamperedPayload(t *testing.T) {
	now := time.Now().Unix()
	v := NewVerifier(testBotToken, 24*time.Hour)

	valid := signInitData(t, testBotToken, validFields(now))
	tampered := valid + "&injected=1"

	if _, err := v.Verify(tampered); !errors.Is(err, ErrBadHash) {
		t.Errorf("error = %v, want %v", err, ErrBadHash)
	}
}

func TestVerifyDisabled(t *testing.T) {
	// Empty bot token skips signature checks entirely (dev mode).
	v := NewVerifier("", 0)
	if v.Enabled() {
		t.Fatal("verifier should report disabled")
	}

	initData := fmt.Sprintf("user=%s", url.QueryEscape(`{"id":7,"first_name":"Dev"}`))
	identity, err := v.Verify(initData)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if identity.TelegramID != 7 {
		t.Errorf("TelegramID = %d, want 7", identity.TelegramID)
	}
}

func TestVerifyTTLDisabled(t *testing.T) {
	v := NewVerifier(testBotToken, 0)

	// Ancient auth_date passes when the TTL check is off.
	old := validFields(1000)
	if _, err := v.Verify(signInitData(t, testBotToken, old)); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}
