package cardkit

import (
	"archive/zip"
	"bytes"
	"crypto/sha1" //nolint:gosec // manifest.json hashes are SHA-1 by format definition
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"
)

// Bundle file names fixed by the pass format.
const (
	PassFile      = "pass.json"
	ManifestFile  = "manifest.json"
	SignatureFile = "signature"
)

// PKPassContentType is the media type of a signed pass bundle.
const PKPassContentType = "application/vnd.apple.pkpass"

var (
	// ErrNoSignature is returned when a bundle has no signature file.
	ErrNoSignature = errors.New("bundle is not signed")

	// ErrManifestMismatch is returned when bundle contents disagree with
	// the manifest.
	ErrManifestMismatch = errors.New("bundle contents do not match manifest")
)

// Packager serializes, signs, and zips passes. It holds no per-call state
// and is safe for concurrent use. The zero value is usable; NewPackager
// returns one ready to share.
type Packager struct {
	now func() time.Time
}

// NewPackager returns a Packager.
func NewPackager() *Packager {
	return &Packager{now: time.Now}
}

// Package builds a signed .pkpass bundle from p and optional assets (for
// example icon.png or logo.png). Asset names must be plain relative paths
// and may not shadow the reserved bundle files. Any failure returns no bytes.
func (pk *Packager) Package(p *Pass, assets map[string][]byte, m *SigningMaterial) ([]byte, error) {
	if p == nil {
		return nil, errors.New("pass content is nil")
	}
	if m == nil || m.Certificate == nil || m.WWDR == nil || m.Key == nil {
		return nil, errors.New("incomplete signing material")
	}
	if match, err := KeyMatchesCert(m.Key, m.Certificate); err != nil {
		return nil, fmt.Errorf("signing manifest: %w", err)
	} else if !match {
		return nil, fmt.Errorf("signing manifest: %w", ErrKeyMismatch)
	}

	passJSON, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", PassFile, err)
	}

	files := map[string][]byte{PassFile: passJSON}
	for name, data := range assets {
		if err := validateAssetName(name); err != nil {
			return nil, err
		}
		files[name] = data
	}

	manifest, err := BuildManifest(files)
	if err != nil {
		return nil, err
	}
	signature, err := signDetached(manifest, m)
	if err != nil {
		return nil, fmt.Errorf("signing manifest: %w", err)
	}
	files[ManifestFile] = manifest
	files[SignatureFile] = signature

	out, err := pk.zipBundle(files)
	if err != nil {
		return nil, err
	}
	slog.Debug("packaged pass", "serial", p.SerialNumber, "files", len(files), "bytes", len(out))
	return out, nil
}

// zipBundle writes files into a zip archive: pass.json first, assets in
// name order, then manifest.json and signature.
func (pk *Packager) zipBundle(files map[string][]byte) ([]byte, error) {
	var names []string
	for name := range files {
		if name == PassFile || name == ManifestFile || name == SignatureFile {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	order := append([]string{PassFile}, names...)
	order = append(order, ManifestFile, SignatureFile)

	modified := time.Now()
	if pk.now != nil {
		modified = pk.now()
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("adding %s to bundle: %w", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, fmt.Errorf("writing %s to bundle: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing bundle: %w", err)
	}
	return buf.Bytes(), nil
}

func validateAssetName(name string) error {
	switch {
	case name == "":
		return errors.New("asset name is empty")
	case name == PassFile || name == ManifestFile || name == SignatureFile:
		return fmt.Errorf("asset name %q is reserved", name)
	case strings.HasPrefix(name, "/") || strings.Contains(name, `\`):
		return fmt.Errorf("asset name %q must be a relative slash-separated path", name)
	case path.Clean(name) != name || strings.HasPrefix(name, "../") || name == "..":
		return fmt.Errorf("asset name %q is not a clean relative path", name)
	}
	return nil
}

// BuildManifest returns manifest.json content mapping each file name to the
// lowercase hex SHA-1 of its bytes. encoding/json sorts the keys, so the
// output is deterministic for a given set of files.
func BuildManifest(files map[string][]byte) ([]byte, error) {
	manifest := make(map[string]string, len(files))
	for name, data := range files {
		sum := sha1.Sum(data) //nolint:gosec // see import
		manifest[name] = hex.EncodeToString(sum[:])
	}
	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", ManifestFile, err)
	}
	return out, nil
}

// BundleReport describes a verified pass bundle.
type BundleReport struct {
	Pass     *Pass
	Files    []string
	Manifest map[string]string
	Signer   *x509.Certificate
}

// VerifyPassBundle checks an unpacked bundle: pass.json parses, every file
// except manifest.json and signature is listed in the manifest with a
// matching hash, and the signature is a valid detached signature over the
// manifest. Signer chain trust is not evaluated.
func VerifyPassBundle(files map[string][]byte) (*BundleReport, error) {
	passJSON, ok := files[PassFile]
	if !ok {
		return nil, fmt.Errorf("bundle has no %s", PassFile)
	}
	manifestJSON, ok := files[ManifestFile]
	if !ok {
		return nil, fmt.Errorf("bundle has no %s", ManifestFile)
	}

	var p Pass
	if err := json.Unmarshal(passJSON, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", PassFile, err)
	}
	var manifest map[string]string
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ManifestFile, err)
	}

	var names []string
	for name, data := range files {
		names = append(names, name)
		if name == ManifestFile || name == SignatureFile {
			continue
		}
		want, listed := manifest[name]
		if !listed {
			return nil, fmt.Errorf("%w: %s is not listed", ErrManifestMismatch, name)
		}
		sum := sha1.Sum(data) //nolint:gosec // see import
		if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, want) {
			return nil, fmt.Errorf("%w: %s has hash %s, manifest says %s", ErrManifestMismatch, name, got, want)
		}
	}
	for name := range manifest {
		if _, present := files[name]; !present {
			return nil, fmt.Errorf("%w: %s is listed but missing", ErrManifestMismatch, name)
		}
	}
	slices.Sort(names)

	report := &BundleReport{Pass: &p, Files: names, Manifest: manifest}

	signature, ok := files[SignatureFile]
	if !ok {
		return report, ErrNoSignature
	}
	signer, err := verifyDetached(signature, manifestJSON)
	if err != nil {
		return report, err
	}
	report.Signer = signer
	return report, nil
}
