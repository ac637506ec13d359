package internal

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadPassphraseFromFile returns the first non-blank line of filename,
// trimmed of surrounding whitespace.
func LoadPassphraseFromFile(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			return pwd, nil
		}
	}
	return "", scanner.Err()
}

// ResolvePassphrase picks the signer key passphrase. An explicit flag value
// wins, then the passphrase file, then the configured value.
func ResolvePassphrase(flagValue, passphraseFile, configured string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if passphraseFile != "" {
		pwd, err := LoadPassphraseFromFile(passphraseFile)
		if err != nil {
			return "", fmt.Errorf("loading passphrase from file: %w", err)
		}
		return pwd, nil
	}
	return configured, nil
}
