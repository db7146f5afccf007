package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// KeyPair represents an RSA key pair for signing tokens
type KeyPair struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// GenerateRSAKeyPair generates a new RSA key pair for RS256 signing
func GenerateRSAKeyPair(keyID string, bits int) (*KeyPair, error) {
	if bits < 2048 {
		bits = 2048
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return &KeyPair{KeyID: keyID, PrivateKey: privateKey, PublicKey: &privateKey.PublicKey}, nil
}

// GetSigningMethod returns the JWT signing method for this key pair
func (kp *KeyPair) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodRS256
}

// ExportPrivateKeyPEM exports the RSA private key as PEM
func (kp *KeyPair) ExportPrivateKeyPEM() string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(kp.PrivateKey),
	}))
}

// LoadKeyPairFromPEM loads a key pair from a PKCS1 or PKCS8 private key.
func LoadKeyPairFromPEM(keyID, privateKeyPEM string) (*KeyPair, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		parsed, err8 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err8 != nil {
			return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not RSA")
		}
		privateKey = rsaKey
	}
	return &KeyPair{KeyID: keyID, PrivateKey: privateKey, PublicKey: &privateKey.PublicKey}, nil
}

// ParseSigner builds a signer from configured key material. A PEM encoded
// RSA private key selects RS256, anything else is used as an HMAC secret.
func ParseSigner(keyID, material string) (Signer, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, fmt.Errorf("[ParseSigner] signing key is required")
	}
	if strings.HasPrefix(material, "-----BEGIN") {
		keyPair, err := LoadKeyPairFromPEM(keyID, material)
		if err != nil {
			return nil, fmt.Errorf("[ParseSigner] %w", err)
		}
		return NewKeyPairSigner(keyPair), nil
	}
	return NewHMACSigner(material), nil
}
