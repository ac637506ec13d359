// Package cardkit generates shareable contact artifacts from a profile:
// vCard 3.0 documents and signed wallet passes (.pkpass bundles), with an
// unsigned development artifact when no signing material is available.
package cardkit

import "strings"

// DefaultName is used when a contact arrives without a display name.
const DefaultName = "Digital Contact"

// DefaultBaseURL is the public application URL used when none is configured.
const DefaultBaseURL = "https://digitalcard.app"

// SocialLink is a labeled link shown on a contact card. Platform is a
// display label; URL is passed through as-is.
type SocialLink struct {
	Platform string `json:"platform" yaml:"platform"`
	URL      string `json:"url" yaml:"url"`
}

// Contact is the shareable subset of a user profile. Handle must be
// non-empty; it is not validated here.
type Contact struct {
	Handle       string       `json:"handle" yaml:"handle"`
	Name         string       `json:"name" yaml:"name"`
	Title        string       `json:"title,omitempty" yaml:"title,omitempty"`
	Email        string       `json:"email,omitempty" yaml:"email,omitempty"`
	Phone        string       `json:"phone,omitempty" yaml:"phone,omitempty"`
	Bio          string       `json:"bio,omitempty" yaml:"bio,omitempty"`
	ProfileImage string       `json:"profileImage,omitempty" yaml:"profileImage,omitempty"`
	SocialLinks  []SocialLink `json:"socialLinks,omitempty" yaml:"socialLinks,omitempty"`
}

// DisplayName returns the contact's name, or DefaultName when it is blank.
func (c Contact) DisplayName() string {
	if strings.TrimSpace(c.Name) == "" {
		return DefaultName
	}
	return c.Name
}

// ProfileURL returns the canonical public profile URL for handle. Returns
// an empty string when baseURL is empty.
func ProfileURL(baseURL, handle string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/profile/" + handle
}

// QRCodeURL returns the URL of the hosted QR code image for handle.
func QRCodeURL(baseURL, handle string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/api/qr/" + handle
}
