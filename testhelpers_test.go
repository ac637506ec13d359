package cardkit

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"
)

// testPKI holds PEM-encoded signing material chained to a throwaway
// WWDR-style intermediate.
type testPKI struct {
	WWDRPEM []byte
	CertPEM []byte
	KeyPEM  []byte
	WWDR    *x509.Certificate
	Cert    *x509.Certificate
	Key     crypto.Signer
}

func randomSerial(t *testing.T) *big.Int {
	t.Helper()
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		t.Fatal(err)
	}
	return serial
}

// generateTestPKI creates a WWDR-style CA and an ECDSA P-256 pass type
// certificate it issued.
func generateTestPKI(t *testing.T) *testPKI {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return generateTestPKIWithKey(t, key)
}

// generateTestPKIWithKey is generateTestPKI with a caller-chosen signer key.
func generateTestPKIWithKey(t *testing.T, signerKey crypto.Signer) *testPKI {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	caTemplate := &x509.Certificate{
		SerialNumber:          randomSerial(t),
		Subject:               pkix.Name{CommonName: "Test WWDR CA", Organization: []string{"Test"}},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatal(err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		t.Fatal(err)
	}

	leafTemplate := &x509.Certificate{
		SerialNumber: randomSerial(t),
		Subject:      pkix.Name{CommonName: "Pass Type ID: pass.com.example.test", OrganizationalUnit: []string{"TEAM123456"}},
		NotBefore:    time.Now().Add(-1 * time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTemplate, caCert, signerKey.Public(), caKey)
	if err != nil {
		t.Fatal(err)
	}
	leafCert, err := x509.ParseCertificate(leafDER)
	if err != nil {
		t.Fatal(err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(signerKey)
	if err != nil {
		t.Fatal(err)
	}

	return &testPKI{
		WWDRPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER}),
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leafDER}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
		WWDR:    caCert,
		Cert:    leafCert,
		Key:     signerKey,
	}
}

// material returns the PKI as SigningMaterial.
func (p *testPKI) material() *SigningMaterial {
	return &SigningMaterial{WWDR: p.WWDR, Certificate: p.Cert, Key: p.Key}
}

func generateRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// staticMaterial is a SigningMaterialSource returning fixed values.
type staticMaterial struct {
	m   *SigningMaterial
	err error
}

func (s staticMaterial) LoadSigningMaterial() (*SigningMaterial, error) {
	return s.m, s.err
}

// sampleContact is the fully populated contact used across tests.
func sampleContact() Contact {
	return Contact{
		Handle: "jdoe",
		Name:   "Jane Doe",
		Title:  "Engineer",
		Email:  "jane@x.com",
		Phone:  "+15551234567",
		Bio:    "Loves Rust",
		SocialLinks: []SocialLink{
			{Platform: "LinkedIn", URL: "https://linkedin.com/in/jdoe"},
		},
	}
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
