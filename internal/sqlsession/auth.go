package sqlsession

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MintKeyPairToken signs a key-pair authentication token the way
// Snowflake's own JWT auth flow does: issuer and subject are built from
// the account identifier, the user name, and the SHA-256 fingerprint of
// the user's registered public key, signed RS256 with the matching
// private key. now is injected so tests can assert exact exp/iat values.
func MintKeyPairToken(cfg Config, now time.Time) (string, error) {
	keyBytes, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return "", fmt.Errorf("sqlsession: reading private key: %w", err)
	}

	key, err := parsePrivateKey(keyBytes, cfg.PrivateKeyPassphrase)
	if err != nil {
		return "", fmt.Errorf("sqlsession: parsing private key: %w", err)
	}

	fingerprint, err := publicKeyFingerprint(&key.PublicKey)
	if err != nil {
		return "", fmt.Errorf("sqlsession: computing public key fingerprint: %w", err)
	}

	accountID := strings.ToUpper(cfg.Account)
	userID := strings.ToUpper(cfg.User)
	qualifiedUser := accountID + "." + userID

	claims := jwt.MapClaims{
		"iss": qualifiedUser + ".SHA256:" + fingerprint,
		"sub": qualifiedUser,
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(cfg.tokenTTL()) * time.Second).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sqlsession: signing token: %w", err)
	}

	return signed, nil
}

// parsePrivateKey accepts both PKCS#1 and PKCS#8 PEM-encoded RSA keys,
// decrypting the block first when passphrase is non-empty (a registered
// key-pair's private key is routinely stored encrypted at rest).
func parsePrivateKey(pemBytes []byte, passphrase string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	der := block.Bytes

	if passphrase != "" {
		//nolint:staticcheck // x509.DecryptPEMBlock is deprecated but still the only
		// stdlib path for PEM-encrypted keys; no replacement ships in the stdlib.
		decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("decrypting key: %w", err)
		}

		der = decrypted
	}

	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not an RSA private key")
	}

	return rsaKey, nil
}

// publicKeyFingerprint is the base64-encoded SHA-256 digest of the
// DER-encoded SubjectPublicKeyInfo, the same value Snowflake expects to
// match against ALTER USER ... SET RSA_PUBLIC_KEY.
func publicKeyFingerprint(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(der)

	return base64.StdEncoding.EncodeToString(sum[:]), nil
}
