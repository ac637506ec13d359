package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sensiblebit/cardkit"
)

// InspectResult summarizes a pass bundle.
type InspectResult struct {
	SerialNumber       string            `json:"serial_number"`
	PassTypeIdentifier string            `json:"pass_type_identifier"`
	TeamIdentifier     string            `json:"team_identifier"`
	Description        string            `json:"description"`
	Barcode            string            `json:"barcode,omitempty"`
	Files              []string          `json:"files"`
	Manifest           map[string]string `json:"manifest"`
	Signed             bool              `json:"signed"`
	Signer             string            `json:"signer,omitempty"`
	SignerSHA256       string            `json:"signer_sha256_fingerprint,omitempty"`
}

// InspectFile reads and verifies a .pkpass file. An unsigned bundle is
// reported with Signed=false; any other verification failure is an error.
func InspectFile(path string, limits ArchiveLimits) (*InspectResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return InspectBundle(data, limits)
}

// InspectBundle verifies bundle bytes and summarizes them.
func InspectBundle(data []byte, limits ArchiveLimits) (*InspectResult, error) {
	files, err := ReadBundle(data, limits)
	if err != nil {
		return nil, err
	}
	report, err := cardkit.VerifyPassBundle(files)
	if err != nil && !errors.Is(err, cardkit.ErrNoSignature) {
		return nil, err
	}

	result := &InspectResult{
		SerialNumber:       report.Pass.SerialNumber,
		PassTypeIdentifier: report.Pass.PassTypeIdentifier,
		TeamIdentifier:     report.Pass.TeamIdentifier,
		Description:        report.Pass.Description,
		Files:              report.Files,
		Manifest:           report.Manifest,
	}
	if len(report.Pass.Barcodes) > 0 {
		result.Barcode = report.Pass.Barcodes[0].Message
	}
	if report.Signer != nil {
		result.Signed = true
		result.Signer = report.Signer.Subject.String()
		result.SignerSHA256 = cardkit.CertFingerprint(report.Signer)
	}
	return result, nil
}

// FormatInspectResult renders a result as "text" or "json".
func FormatInspectResult(r *InspectResult, format string) (string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
		return string(data) + "\n", nil
	case "text":
		var sb strings.Builder
		fmt.Fprintf(&sb, "Serial:      %s\n", r.SerialNumber)
		fmt.Fprintf(&sb, "Pass type:   %s\n", r.PassTypeIdentifier)
		fmt.Fprintf(&sb, "Team:        %s\n", r.TeamIdentifier)
		fmt.Fprintf(&sb, "Description: %s\n", r.Description)
		if r.Barcode != "" {
			fmt.Fprintf(&sb, "Barcode:     %s\n", r.Barcode)
		}
		if r.Signed {
			fmt.Fprintf(&sb, "Signature:   OK (%s)\n", r.Signer)
			fmt.Fprintf(&sb, "Signer SHA-256: %s\n", r.SignerSHA256)
		} else {
			sb.WriteString("Signature:   NONE\n")
		}
		sb.WriteString("Files:\n")
		for _, name := range r.Files {
			if hash, ok := r.Manifest[name]; ok {
				fmt.Fprintf(&sb, "  %-20s %s\n", name, hash)
			} else {
				fmt.Fprintf(&sb, "  %s\n", name)
			}
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text or json)", format)
	}
}
