package cardkit

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fallback identifiers used when configuration does not provide them. A
// pass built with these can still be packaged, but wallet apps will reject
// its signature.
const (
	FallbackPassTypeIdentifier = "pass.com.digitalcard.contact"
	FallbackTeamIdentifier     = "DIGITALCARD"
)

// Brand colors applied to every pass.
const (
	BrandBackgroundColor = "rgb(37, 99, 235)"
	BrandForegroundColor = "rgb(255, 255, 255)"
	BrandLabelColor      = "rgb(219, 234, 254)"
)

// Barcode describes a pass barcode.
type Barcode struct {
	Format          string `json:"format"`
	Message         string `json:"message"`
	MessageEncoding string `json:"messageEncoding"`
	AltText         string `json:"altText,omitempty"`
}

// PassField is a single labeled value on the front or back of a pass.
type PassField struct {
	Key             string `json:"key"`
	Label           string `json:"label,omitempty"`
	Value           string `json:"value"`
	AttributedValue string `json:"attributedValue,omitempty"`
	TextAlignment   string `json:"textAlignment,omitempty"`
}

// PassStructure groups pass fields by where the wallet displays them.
// Empty groups are serialized as empty arrays.
type PassStructure struct {
	PrimaryFields   []PassField `json:"primaryFields"`
	SecondaryFields []PassField `json:"secondaryFields"`
	AuxiliaryFields []PassField `json:"auxiliaryFields"`
	BackFields      []PassField `json:"backFields"`
}

// Pass is the content of pass.json for a generic-style contact pass.
type Pass struct {
	FormatVersion       int           `json:"formatVersion"`
	PassTypeIdentifier  string        `json:"passTypeIdentifier"`
	TeamIdentifier      string        `json:"teamIdentifier"`
	SerialNumber        string        `json:"serialNumber"`
	OrganizationName    string        `json:"organizationName"`
	Description         string        `json:"description"`
	LogoText            string        `json:"logoText,omitempty"`
	BackgroundColor     string        `json:"backgroundColor"`
	ForegroundColor     string        `json:"foregroundColor"`
	LabelColor          string        `json:"labelColor"`
	Generic             PassStructure `json:"generic"`
	Barcode             *Barcode      `json:"barcode,omitempty"`
	Barcodes            []Barcode     `json:"barcodes"`
	RelevantDate        string        `json:"relevantDate,omitempty"`
	WebServiceURL       string        `json:"webServiceURL,omitempty"`
	AuthenticationToken string        `json:"authenticationToken,omitempty"`
}

// PassIdentity holds the developer-account identifiers stamped on a pass.
type PassIdentity struct {
	PassTypeIdentifier string
	TeamIdentifier     string
}

// PassBuilder assembles pass content from a contact. The zero value is
// usable: identifiers fall back to placeholders, the base URL to
// DefaultBaseURL, and tokens to random UUIDs.
type PassBuilder struct {
	Identity     PassIdentity
	BaseURL      string
	Organization string

	// Now returns the generation time. Defaults to time.Now.
	Now func() time.Time

	// NewToken returns the web-service authentication token for a pass.
	// Defaults to NewAuthenticationToken.
	NewToken func() (string, error)
}

// NewAuthenticationToken returns an unguessable 32-character hex token
// derived from a random (version 4) UUID.
func NewAuthenticationToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating authentication token: %w", err)
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

func (b *PassBuilder) baseURL() string {
	if b.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(b.BaseURL, "/")
}

func (b *PassBuilder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Build assembles the pass content for c. The serial number, relevant date,
// and authentication token change on every call; everything else depends
// only on c and the builder configuration.
func (b *PassBuilder) Build(c Contact) (*Pass, error) {
	newToken := b.NewToken
	if newToken == nil {
		newToken = NewAuthenticationToken
	}
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	passTypeID := b.Identity.PassTypeIdentifier
	if passTypeID == "" {
		passTypeID = FallbackPassTypeIdentifier
	}
	teamID := b.Identity.TeamIdentifier
	if teamID == "" {
		teamID = FallbackTeamIdentifier
	}
	org := b.Organization
	if org == "" {
		org = DefaultOrganization
	}

	now := b.now()
	name := c.DisplayName()
	profileURL := ProfileURL(b.baseURL(), c.Handle)

	qr := Barcode{
		Format:          "PKBarcodeFormatQR",
		Message:         profileURL,
		MessageEncoding: "iso-8859-1",
		AltText:         "Scan to view profile",
	}

	p := &Pass{
		FormatVersion:      1,
		PassTypeIdentifier: passTypeID,
		TeamIdentifier:     teamID,
		SerialNumber:       c.Handle + "-" + strconv.FormatInt(now.UnixMilli(), 10),
		OrganizationName:   org,
		Description:        name + " - Digital Contact Card",
		LogoText:           name,
		BackgroundColor:    BrandBackgroundColor,
		ForegroundColor:    BrandForegroundColor,
		LabelColor:         BrandLabelColor,
		Generic: PassStructure{
			PrimaryFields: []PassField{
				{Key: "name", Label: "NAME", Value: name, TextAlignment: "PKTextAlignmentLeft"},
			},
			SecondaryFields: []PassField{},
			AuxiliaryFields: []PassField{},
			BackFields:      backFields(c, profileURL),
		},
		Barcode:             &qr,
		Barcodes:            []Barcode{qr},
		RelevantDate:        now.Format(time.RFC3339),
		WebServiceURL:       b.baseURL() + "/api/wallet",
		AuthenticationToken: token,
	}
	if c.Title != "" {
		p.Generic.SecondaryFields = append(p.Generic.SecondaryFields,
			PassField{Key: "title", Label: "TITLE", Value: c.Title})
	}
	return p, nil
}

func backFields(c Contact, profileURL string) []PassField {
	fields := []PassField{{
		Key:             "profile",
		Label:           "View Full Profile",
		Value:           profileURL,
		AttributedValue: anchor(profileURL, "View Full Profile"),
	}}
	if c.Email != "" {
		fields = append(fields, PassField{
			Key:             "email",
			Label:           "Email",
			Value:           c.Email,
			AttributedValue: anchor("mailto:"+c.Email, c.Email),
		})
	}
	if c.Phone != "" {
		fields = append(fields, PassField{
			Key:             "phone",
			Label:           "Phone",
			Value:           c.Phone,
			AttributedValue: anchor("tel:"+c.Phone, c.Phone),
		})
	}
	if c.Bio != "" {
		fields = append(fields, PassField{Key: "bio", Label: "About", Value: c.Bio})
	}
	for i, link := range c.SocialLinks {
		if link.URL == "" || link.Platform == "" {
			continue
		}
		fields = append(fields, PassField{
			Key:             "social" + strconv.Itoa(i),
			Label:           link.Platform,
			Value:           link.URL,
			AttributedValue: anchor(link.URL, link.Platform),
		})
	}
	return fields
}

// anchor renders an HTML link for an attributedValue.
func anchor(href, text string) string {
	return `<a href="` + html.EscapeString(href) + `">` + html.EscapeString(text) + `</a>`
}
