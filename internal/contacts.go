package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sensiblebit/cardkit"
	"gopkg.in/yaml.v3"
)

// LoadContactFile reads a contact from a YAML or JSON file ("-" reads
// stdin). JSON is accepted because it is a subset of YAML. A contact
// without a handle is rejected here, before generation.
func LoadContactFile(path string) (*cardkit.Contact, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading contact %s: %w", path, err)
	}
	c, err := ParseContact(data)
	if err != nil {
		return nil, fmt.Errorf("parsing contact %s: %w", path, err)
	}
	return c, nil
}

// ParseContact decodes a single contact document. Unknown keys are an error.
func ParseContact(data []byte) (*cardkit.Contact, error) {
	var c cardkit.Contact
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty contact document")
		}
		return nil, err
	}
	if c.Handle == "" {
		return nil, errors.New("contact has no handle")
	}
	return &c, nil
}
