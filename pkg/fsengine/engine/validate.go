package engine

import (
	"fmt"
	"strings"
	"unicode"
)

const reservedChars = `\/:*?"<>|`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// ValidateName checks a single path element against the rules every backend
// shares: no separators or wildcard characters, no control characters and
// no reserved device names, with or without an extension.
func ValidateName(name string) error {
	switch name {
	case "", ".", "..":
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	if i := strings.IndexAny(name, reservedChars); i >= 0 {
		return fmt.Errorf("%q contains %q: %w", name, name[i], ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%q contains a control character: %w", name, ErrInvalidName)
		}
	}
	stem := name
	if dot := strings.Index(stem, "."); dot >= 0 {
		stem = stem[:dot]
	}
	if reservedNames[strings.ToUpper(strings.TrimSpace(stem))] {
		return fmt.Errorf("%q is a reserved device name: %w", name, ErrInvalidName)
	}
	return nil
}
