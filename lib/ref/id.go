// Copyright 2026 The Nook Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// parseSigilID validates a Matrix identifier of the form
// "<sigil><localpart>:<server>". Returns the localpart and server
// name. kind names the identifier in error messages ("user ID",
// "room ID").
func parseSigilID(kind string, sigil byte, raw string) (localpart, server string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("empty %s", kind)
	}
	if raw[0] != sigil {
		return "", "", fmt.Errorf("%s must start with %q: %q", kind, string(sigil), raw)
	}

	colonIndex := strings.IndexByte(raw[1:], ':')
	if colonIndex < 0 {
		return "", "", fmt.Errorf("%s missing ':server' suffix: %q", kind, raw)
	}
	if colonIndex == 0 {
		return "", "", fmt.Errorf("%s has empty localpart: %q", kind, raw)
	}

	localpart = raw[1 : 1+colonIndex]
	server = raw[1+colonIndex+1:]
	if server == "" {
		return "", "", fmt.Errorf("%s has empty server name: %q", kind, raw)
	}
	return localpart, server, nil
}
