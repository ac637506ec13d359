package cardkit

import (
	"strings"
	"time"
)

// DefaultOrganization is emitted as the vCard ORG when a contact has a title,
// and used as the wallet pass organization name.
const DefaultOrganization = "Digital Business Card"

// VCardContentType is the media type for EncodeVCard output.
const VCardContentType = "text/vcard; charset=utf-8"

// vcardRevLayout is ISO-8601 in UTC with millisecond precision.
const vcardRevLayout = "2006-01-02T15:04:05.000Z"

// VCardOptions controls the optional parts of an encoded vCard.
type VCardOptions struct {
	// BaseURL is the public application URL. When empty, the profile URL
	// line is omitted.
	BaseURL string

	// Organization is the ORG value, emitted only when the contact has a
	// title. Defaults to DefaultOrganization.
	Organization string

	// Now returns the REV timestamp. Defaults to time.Now.
	Now func() time.Time
}

// VCardFilename returns the suggested download filename for a contact's vCard.
func VCardFilename(handle string) string {
	return handle + "-contact.vcf"
}

// EncodeVCard serializes a contact as a single vCard 3.0 record. Lines are
// separated by CRLF with no trailing terminator. Properties whose source
// field is empty are omitted, and free-text values are escaped so that
// user input cannot break the record structure.
func EncodeVCard(c Contact, opts VCardOptions) string {
	org := opts.Organization
	if org == "" {
		org = DefaultOrganization
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	name := c.DisplayName()
	lines := []string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:" + escapeVCardText(name),
		"N:" + structuredName(name),
	}

	if c.Title != "" {
		lines = append(lines, "TITLE:"+escapeVCardText(c.Title))
	}
	if c.Email != "" {
		lines = append(lines, "EMAIL;TYPE=INTERNET:"+escapeVCardText(c.Email))
	}
	if c.Phone != "" {
		lines = append(lines, "TEL;TYPE=CELL:"+escapeVCardText(c.Phone))
	}
	if c.Bio != "" {
		lines = append(lines, "NOTE:"+escapeVCardText(c.Bio))
	}
	if u := ProfileURL(opts.BaseURL, c.Handle); u != "" {
		lines = append(lines, "URL:"+vcardURI(u))
	}
	// one line per entry, even when the URL is empty
	for _, link := range c.SocialLinks {
		platform := vcardParamValue(link.Platform)
		if platform == "" {
			platform = "other"
		}
		lines = append(lines, "URL;TYPE="+platform+":"+vcardURI(link.URL))
	}
	if c.Title != "" {
		lines = append(lines, "ORG:"+escapeVCardText(org))
	}
	lines = append(lines,
		"CATEGORIES:Business,Contact",
		"REV:"+now().UTC().Format(vcardRevLayout),
		"END:VCARD",
	)

	return strings.Join(lines, "\r\n")
}

// structuredName builds the N property value: the whitespace-separated name
// components in reverse order, each escaped, joined with ';'.
// "Jane Doe" becomes "Doe;Jane".
func structuredName(name string) string {
	parts := strings.Fields(name)
	out := make([]string, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		out = append(out, escapeVCardText(parts[i]))
	}
	return strings.Join(out, ";")
}

var vcardTextEscaper = strings.NewReplacer(
	`\`, `\\`,
	`,`, `\,`,
	`;`, `\;`,
	"\r\n", `\n`,
	"\r", `\n`,
	"\n", `\n`,
)

// escapeVCardText escapes a property value per RFC 6350 section 3.4.
func escapeVCardText(s string) string {
	return vcardTextEscaper.Replace(s)
}

// vcardURI strips line breaks from a URI value. URIs are not text values
// and are emitted without backslash escaping.
func vcardURI(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// vcardParamValue sanitizes a parameter value. DQUOTE and control
// characters are not allowed in parameter values at all; values containing
// ';', ':' or ',' must be quoted.
func vcardParamValue(s string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '"' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if strings.ContainsAny(clean, ";:,") {
		return `"` + clean + `"`
	}
	return clean
}
