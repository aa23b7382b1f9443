// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ReadFromPath reads a secret from a file, or from stdin when path is
// "-". Leading and trailing whitespace is trimmed before storing.
// The returned buffer must be closed by the caller.
func ReadFromPath(path string) (*Buffer, error) {
	var data []byte

	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return nil, fmt.Errorf("stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret is empty")
	}

	// NewFromBytes zeros trimmed; the surrounding whitespace bytes
	// still need clearing.
	buffer, err := NewFromBytes(trimmed)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}

// Prompt reads a secret interactively from the terminal with echo
// disabled. The prompt text is written to stderr so it never mixes
// with piped stdout. Fails if stdin is not a terminal.
func Prompt(promptText string) (*Buffer, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("stdin is not a terminal; use a password file instead")
	}

	fmt.Fprint(os.Stderr, promptText)
	line, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		Zero(line)
		return nil, fmt.Errorf("password is empty")
	}

	buffer, err := NewFromBytes(trimmed)
	Zero(line)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
