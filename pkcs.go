package cardkit

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// DecodePKCS12 decodes a PKCS#12/PFX bundle, such as a pass type
// certificate exported from Keychain Access, and returns the private key,
// leaf certificate, and any CA certificates it carries.
func DecodePKCS12(pfxData []byte, password string) (crypto.PrivateKey, *x509.Certificate, []*x509.Certificate, error) {
	privateKey, leaf, caCerts, err := gopkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("decoding PKCS#12: %w", err)
	}
	return privateKey, leaf, caCerts, nil
}

// DecodePKCS7 decodes a DER-encoded PKCS#7 bundle and returns the
// certificates it contains.
func DecodePKCS7(derData []byte) ([]*x509.Certificate, error) {
	p7, err := pkcs7.Parse(derData)
	if err != nil {
		return nil, fmt.Errorf("parsing PKCS#7: %w", err)
	}
	if len(p7.Certificates) == 0 {
		return nil, errors.New("PKCS#7 bundle contains no certificates")
	}
	return p7.Certificates, nil
}

// signDetached produces a DER-encoded detached PKCS#7 signature over
// content. The signer certificate and chain are embedded.
func signDetached(content []byte, m *SigningMaterial) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		return nil, fmt.Errorf("creating signed data: %w", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSignerChain(m.Certificate, m.Key, []*x509.Certificate{m.WWDR}, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("adding signer: %w", err)
	}
	sd.Detach()
	der, err := sd.Finish()
	if err != nil {
		return nil, fmt.Errorf("finishing signature: %w", err)
	}
	return der, nil
}

// verifyDetached checks a detached PKCS#7 signature over content and
// returns the certificate that produced it. Chain trust is not evaluated.
func verifyDetached(signature, content []byte) (*x509.Certificate, error) {
	p7, err := pkcs7.Parse(signature)
	if err != nil {
		return nil, fmt.Errorf("parsing signature: %w", err)
	}
	p7.Content = content
	if err := p7.Verify(); err != nil {
		return nil, fmt.Errorf("verifying signature: %w", err)
	}
	return p7.GetOnlySigner(), nil
}
