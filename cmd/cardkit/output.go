package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

// writeOutput writes data to path, or to stdout when path is empty. Binary
// data is not written to a terminal.
func writeOutput(path string, data []byte, binary bool, perm os.FileMode) error {
	if path != "" {
		if err := os.WriteFile(path, data, perm); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s (%d bytes)\n", path, len(data))
		return nil
	}
	if binary && stdoutIsTerminal() {
		return errors.New("refusing to write binary output to a terminal (use -o or redirect stdout)")
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return fmt.Errorf("writing to stdout: %w", err)
	}
	return nil
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
