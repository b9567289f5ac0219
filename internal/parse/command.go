// Package parse splits raw command lines received from the hub or the local console.
package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrEmptyCommand is returned for blank command lines.
var ErrEmptyCommand = errors.New("empty command")

var nameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Command splits a raw line of the form "Name" or "Name:Params". Only the first ':'
// separates; the parameters keep any further colons verbatim.
func Command(raw string) (name, params string, err error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", ErrEmptyCommand
	}

	name, params, _ = strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !nameRe.MatchString(name) {
		return "", "", fmt.Errorf("invalid command name %q", name)
	}
	return name, params, nil
}

// Int parses a numeric command payload such as the "10" of "Score:10".
func Int(params string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(params))
	if err != nil {
		return 0, fmt.Errorf("parameter %q is not a number: %w", params, err)
	}
	return n, nil
}
