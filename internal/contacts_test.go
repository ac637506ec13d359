package internal

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestParseContact(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name: "yaml",
			input: `handle: jdoe
name: Jane Doe
title: Engineer
socialLinks:
  - platform: LinkedIn
    url: https://linkedin.com/in/jdoe
`,
		},
		{
			name:  "json",
			input: `{"handle":"jdoe","name":"Jane Doe","title":"Engineer","socialLinks":[{"platform":"LinkedIn","url":"https://linkedin.com/in/jdoe"}]}`,
		},
		{name: "no_handle", input: "name: Jane Doe\n", wantErr: "no handle"},
		{name: "unknown_key", input: "handle: jdoe\nnickname: JD\n", wantErr: "nickname"},
		{name: "empty", input: "", wantErr: "empty contact"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := ParseContact([]byte(tt.input))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("got error %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseContact: %v", err)
			}
			if c.Handle != "jdoe" || c.Name != "Jane Doe" || c.Title != "Engineer" {
				t.Errorf("contact = %+v", c)
			}
			if len(c.SocialLinks) != 1 || c.SocialLinks[0].Platform != "LinkedIn" {
				t.Errorf("social links = %+v", c.SocialLinks)
			}
		})
	}
}

func TestLoadContactFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "jdoe.yaml")
	writeTestFile(t, path, "handle: jdoe\nemail: jane@x.com\n")

	c, err := LoadContactFile(path)
	if err != nil {
		t.Fatalf("LoadContactFile: %v", err)
	}
	if c.Email != "jane@x.com" {
		t.Errorf("Email = %q", c.Email)
	}

	_, err = LoadContactFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading contact") {
		t.Errorf("missing file error = %v", err)
	}
}
