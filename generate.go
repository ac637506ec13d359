package cardkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// PassKind distinguishes a signed, installable pass from the development
// artifact produced when no signing material is available.
type PassKind int

const (
	// PassSigned is a signed .pkpass bundle.
	PassSigned PassKind = iota + 1
	// PassUnsigned is a JSON development artifact. It is not installable.
	PassUnsigned
)

// String returns "signed" or "unsigned".
func (k PassKind) String() string {
	switch k {
	case PassSigned:
		return "signed"
	case PassUnsigned:
		return "unsigned"
	default:
		return fmt.Sprintf("PassKind(%d)", int(k))
	}
}

// DevelopmentPassType marks a development artifact.
const DevelopmentPassType = "wallet-pass-development"

// DevelopmentPass is the diagnostic document returned in place of a pass
// when signing material is not installed.
type DevelopmentPass struct {
	DevelopmentMode bool     `json:"developmentMode"`
	Type            string   `json:"type"`
	Message         string   `json:"message"`
	Contact         Contact  `json:"contact"`
	ProfileURL      string   `json:"profileUrl"`
	QRURL           string   `json:"qrUrl"`
	Pass            *Pass    `json:"pass"`
	Instructions    []string `json:"instructions"`
}

// DevelopmentInstructions lists the steps for obtaining signing material.
var DevelopmentInstructions = []string{
	"Enroll in the Apple Developer Program.",
	"Register a Pass Type ID under Certificates, Identifiers & Profiles.",
	"Create a Pass Type ID certificate for it and export it from Keychain Access as a .p12 file.",
	"Download the Apple WWDR intermediate certificate.",
	"Run 'cardkit certs import <file.p12> --wwdr <AppleWWDR.cer>' to write wwdr.pem, signerCert.pem and signerKey.pem into the certificates directory.",
	"Set the pass type identifier, team identifier and certificate passphrase in the configuration.",
}

// WalletPass is the result of GenerateWalletPass. Exactly one of the two
// variants is populated, as reported by Kind: Data holds the .pkpass bundle
// for PassSigned, Development holds the diagnostic document for PassUnsigned.
type WalletPass struct {
	Kind        PassKind
	Handle      string
	Data        []byte
	Development *DevelopmentPass
}

// Signed reports whether the pass is an installable signed bundle.
func (w *WalletPass) Signed() bool {
	return w.Kind == PassSigned
}

// ContentType returns the media type of Bytes.
func (w *WalletPass) ContentType() string {
	if w.Signed() {
		return PKPassContentType
	}
	return "application/json"
}

// Filename returns the suggested download filename.
func (w *WalletPass) Filename() string {
	if w.Signed() {
		return w.Handle + ".pkpass"
	}
	return w.Handle + "-pass-development.json"
}

// Bytes returns the serialized artifact: the bundle for a signed pass, or
// the indented JSON document for a development pass.
func (w *WalletPass) Bytes() ([]byte, error) {
	switch w.Kind {
	case PassSigned:
		return w.Data, nil
	case PassUnsigned:
		if w.Development == nil {
			return nil, errors.New("development pass has no content")
		}
		out, err := json.MarshalIndent(w.Development, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding development pass: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown pass kind %v", w.Kind)
	}
}

// PassRecord is what a PassRecorder persists for each generated pass: the
// association between a handle and the web-service authentication token.
type PassRecord struct {
	Handle              string
	SerialNumber        string
	PassTypeIdentifier  string
	AuthenticationToken string
	Kind                PassKind
	CreatedAt           time.Time
}

// PassRecorder persists generated pass records.
type PassRecorder interface {
	RecordPass(rec PassRecord) error
}

// Generator produces wallet passes. It is safe for concurrent use as long
// as its collaborators are.
type Generator struct {
	Builder  *PassBuilder
	Packager *Packager
	Signing  SigningMaterialSource

	// Assets are added to every signed bundle (icon.png, logo.png, ...).
	Assets map[string][]byte

	// Recorder, when set, is called after every successful generation.
	Recorder PassRecorder
}

// GenerateWalletPass builds the pass for c and signs it when signing
// material is available. Without signing material it returns a
// PassUnsigned result rather than an error. Signing or packaging failures
// are returned as errors with no artifact.
func (g *Generator) GenerateWalletPass(c Contact) (*WalletPass, error) {
	builder := g.Builder
	if builder == nil {
		builder = &PassBuilder{}
	}
	p, err := builder.Build(c)
	if err != nil {
		return nil, fmt.Errorf("building pass content: %w", err)
	}

	var material *SigningMaterial
	if g.Signing != nil {
		material, err = g.Signing.LoadSigningMaterial()
		if err != nil {
			return nil, fmt.Errorf("loading signing material: %w", err)
		}
	}

	var result *WalletPass
	if material == nil {
		slog.Debug("signing material not found, generating development pass", "handle", c.Handle)
		result = &WalletPass{
			Kind:        PassUnsigned,
			Handle:      c.Handle,
			Development: newDevelopmentPass(c, p, builder.baseURL()),
		}
	} else {
		packager := g.Packager
		if packager == nil {
			packager = NewPackager()
		}
		data, err := packager.Package(p, g.Assets, material)
		if err != nil {
			return nil, fmt.Errorf("generating pass for %s: %w", c.Handle, err)
		}
		result = &WalletPass{Kind: PassSigned, Handle: c.Handle, Data: data}
	}

	if g.Recorder != nil {
		err := g.Recorder.RecordPass(PassRecord{
			Handle:              c.Handle,
			SerialNumber:        p.SerialNumber,
			PassTypeIdentifier:  p.PassTypeIdentifier,
			AuthenticationToken: p.AuthenticationToken,
			Kind:                result.Kind,
			CreatedAt:           builder.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("recording pass %s: %w", p.SerialNumber, err)
		}
	}
	return result, nil
}

func newDevelopmentPass(c Contact, p *Pass, baseURL string) *DevelopmentPass {
	return &DevelopmentPass{
		DevelopmentMode: true,
		Type:            DevelopmentPassType,
		Message: "Wallet pass signing certificates are not installed. This document is a " +
			"development preview of the pass content and cannot be added to a wallet.",
		Contact:      c,
		ProfileURL:   ProfileURL(baseURL, c.Handle),
		QRURL:        QRCodeURL(baseURL, c.Handle),
		Pass:         p,
		Instructions: DevelopmentInstructions,
	}
}
