package cardkit

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// ErrKeyMismatch is returned when a signer key does not belong to the
// signer certificate.
var ErrKeyMismatch = errors.New("private key does not match signer certificate")

// SigningMaterial is everything needed to sign a pass manifest: the pass
// type certificate, its private key, and the intermediate (WWDR) chain
// certificate that is embedded in the signature.
type SigningMaterial struct {
	WWDR        *x509.Certificate
	Certificate *x509.Certificate
	Key         crypto.Signer
}

// SigningMaterialSource locates signing material. LoadSigningMaterial
// returns (nil, nil) when no material is installed; that is a supported
// mode, not an error.
type SigningMaterialSource interface {
	LoadSigningMaterial() (*SigningMaterial, error)
}

// ParseSigningMaterial parses the three PEM inputs into SigningMaterial.
// The key may be encrypted with passphrase (legacy PEM encryption or an
// encrypted OpenSSH key). Returns ErrKeyMismatch when the key does not
// correspond to the signer certificate.
func ParseSigningMaterial(wwdrPEM, certPEM, keyPEM []byte, passphrase string) (*SigningMaterial, error) {
	wwdr, err := ParsePEMCertificate(wwdrPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing WWDR certificate: %w", err)
	}
	cert, err := ParsePEMCertificate(certPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing signer certificate: %w", err)
	}
	key, err := ParsePEMPrivateKeyWithPassphrase(keyPEM, passphrase)
	if err != nil {
		return nil, fmt.Errorf("parsing signer key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	match, err := KeyMatchesCert(signer, cert)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, ErrKeyMismatch
	}
	return &SigningMaterial{WWDR: wwdr, Certificate: cert, Key: signer}, nil
}

// ParsePEMCertificates parses all certificates from a PEM bundle.
func ParsePEMCertificates(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := pemData
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificates found in PEM data")
	}
	return certs, nil
}

// ParsePEMCertificate parses a single certificate from PEM data.
func ParsePEMCertificate(pemData []byte) (*x509.Certificate, error) {
	certs, err := ParsePEMCertificates(pemData)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// ParseCertificatesAny parses certificates from raw bytes. PEM input is
// recognized by its armor; anything else is tried as DER (Apple distributes
// the WWDR certificate as a .cer), then as PKCS#7.
func ParseCertificatesAny(data []byte) ([]*x509.Certificate, error) {
	if IsPEM(data) {
		return ParsePEMCertificates(data)
	}
	cert, derErr := x509.ParseCertificate(data)
	if derErr == nil {
		return []*x509.Certificate{cert}, nil
	}
	certs, p7Err := DecodePKCS7(data)
	if p7Err == nil {
		return certs, nil
	}
	return nil, fmt.Errorf("not PEM, DER (%v) or PKCS#7 (%v)", derErr, p7Err)
}

// normalizeKey dereferences *ed25519.PrivateKey (returned by
// ssh.ParseRawPrivateKey) to ed25519.PrivateKey.
func normalizeKey(key crypto.PrivateKey) crypto.PrivateKey {
	if ptr, ok := key.(*ed25519.PrivateKey); ok {
		return *ptr
	}
	return key
}

// ParsePEMPrivateKey parses an unencrypted PEM private key (PKCS#1,
// PKCS#8, SEC 1, or OpenSSH).
func ParsePEMPrivateKey(pemData []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in private key data")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		// openssl pkcs12 output sometimes labels PKCS#1 keys as "PRIVATE KEY"
		if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
			return key, nil
		}
		return nil, errors.New("parsing PRIVATE KEY block with any known format")
	case "ENCRYPTED PRIVATE KEY":
		return nil, errors.New("encrypted PKCS#8 keys are not supported; re-import the .p12 with 'cardkit certs import'")
	case "OPENSSH PRIVATE KEY":
		key, err := ssh.ParseRawPrivateKey(pemData)
		if err != nil {
			return nil, fmt.Errorf("parsing OpenSSH private key: %w", err)
		}
		return normalizeKey(key), nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

// ParsePEMPrivateKeyWithPassphrase parses a PEM private key, decrypting it
// with passphrase when it is a legacy encrypted PEM block or an encrypted
// OpenSSH key. Unencrypted keys parse regardless of passphrase.
func ParsePEMPrivateKeyWithPassphrase(pemData []byte, passphrase string) (crypto.PrivateKey, error) {
	key, plainErr := ParsePEMPrivateKey(pemData)
	if plainErr == nil {
		return key, nil
	}

	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in private key data")
	}

	if block.Type == "OPENSSH PRIVATE KEY" {
		if passphrase == "" {
			return nil, plainErr
		}
		key, err := ssh.ParseRawPrivateKeyWithPassphrase(pemData, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("decrypting OpenSSH private key: %w", err)
		}
		return normalizeKey(key), nil
	}

	//nolint:staticcheck // legacy RFC 1423 encryption is what openssl -traditional produces
	if !x509.IsEncryptedPEMBlock(block) {
		return nil, plainErr
	}

	//nolint:staticcheck // see above
	decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}
	return ParsePEMPrivateKey(pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: decrypted}))
}

// CertToPEM encodes a certificate as PEM.
func CertToPEM(cert *x509.Certificate) string {
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	}))
}

// MarshalPrivateKeyToPEM marshals a private key to PKCS#8 PEM format.
func MarshalPrivateKeyToPEM(key crypto.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(normalizeKey(key))
	if err != nil {
		return "", fmt.Errorf("marshaling private key to PKCS#8: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	})), nil
}

// CertFingerprint returns the SHA-256 fingerprint of a certificate as a
// lowercase hex string.
func CertFingerprint(cert *x509.Certificate) string {
	hash := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(hash[:])
}

// KeyMatchesCert reports whether a private key corresponds to the public key
// in a certificate.
func KeyMatchesCert(priv crypto.PrivateKey, cert *x509.Certificate) (bool, error) {
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return false, fmt.Errorf("unsupported private key type: %T", priv)
	}
	type equalKey interface {
		Equal(crypto.PublicKey) bool
	}
	eq, ok := signer.Public().(equalKey)
	if !ok {
		return false, fmt.Errorf("unsupported public key type: %T", signer.Public())
	}
	return eq.Equal(cert.PublicKey), nil
}

// IsPEM returns true if the data appears to contain PEM-encoded content.
func IsPEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN"))
}
