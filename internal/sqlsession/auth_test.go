package sqlsession

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func writeTestKey(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}

	path := filepath.Join(t.TempDir(), "rsa_key.p8")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	return path, key
}

func TestMintKeyPairTokenSignsVerifiableClaims(t *testing.T) {
	path, key := writeTestKey(t)

	cfg := Config{Account: "myorg-myaccount", User: "svc_snowcap", PrivateKeyPath: path}
	now := time.Now().Truncate(time.Second)

	signed, err := MintKeyPairToken(cfg, now)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	parsed, err := jwt.Parse(signed, func(*jwt.Token) (any, error) { return &key.PublicKey, nil })
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(jwt.MapClaims)

	sub, _ := claims["sub"].(string)
	if sub != "MYORG-MYACCOUNT.SVC_SNOWCAP" {
		t.Errorf("unexpected sub claim: %q", sub)
	}

	iss, _ := claims["iss"].(string)
	if got, want := iss[:len(sub)], sub; got != want {
		t.Errorf("iss claim must start with sub, got %q", iss)
	}

	exp, _ := claims["exp"].(float64)
	if int64(exp) != now.Add(59*time.Minute).Unix() {
		t.Errorf("expected default 59m token TTL, got exp %v", exp)
	}
}

func TestMintKeyPairTokenRespectsConfiguredTTL(t *testing.T) {
	path, _ := writeTestKey(t)

	cfg := Config{Account: "acct", User: "user", PrivateKeyPath: path, TokenTTLSeconds: 120}
	now := time.Unix(1000, 0)

	signed, err := MintKeyPairToken(cfg, now)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(signed, jwt.MapClaims{})
	require.NoError(t, err)

	claims := parsed.Claims.(jwt.MapClaims)
	exp, _ := claims["exp"].(float64)

	if int64(exp) != now.Unix()+120 {
		t.Errorf("expected configured 120s TTL, got exp %v (iat %v)", exp, now.Unix())
	}
}

func TestMintKeyPairTokenMissingKeyFile(t *testing.T) {
	cfg := Config{Account: "acct", User: "user", PrivateKeyPath: filepath.Join(t.TempDir(), "missing.pem")}

	_, err := MintKeyPairToken(cfg, time.Now())
	require.Error(t, err)
}
