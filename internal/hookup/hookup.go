// Package hookup parses references to element ports, written "name[port]"
// or "[port]name".
package hookup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NoPort marks a reference without an explicit port.
const NoPort = -1

var (
	nameRegex   = regexp.MustCompile(`^[A-Za-z_@][A-Za-z0-9_@-]*(?:/[A-Za-z0-9_@-]+)*$`)
	suffixRegex = regexp.MustCompile(`^(.+?)\[(\d+)\]$`)
	prefixRegex = regexp.MustCompile(`^\[(\d+)\](.+)$`)
)

// Ref names an element and optionally one of its ports.
type Ref struct {
	Name string
	Port int
}

// HasPort reports whether the reference carries an explicit port.
func (r Ref) HasPort() bool { return r.Port != NoPort }

// PortOr returns the explicit port or def.
func (r Ref) PortOr(def int) int {
	if r.HasPort() {
		return r.Port
	}
	return def
}

func (r Ref) String() string {
	if !r.HasPort() {
		return r.Name
	}
	return fmt.Sprintf("%s[%d]", r.Name, r.Port)
}

// ValidName reports whether name can name an element. Names are words of
// letters, digits, '_', '@' and '-', not starting with a digit or '-',
// optionally grouped into compounds with '/'.
func ValidName(name string) bool {
	return nameRegex.MatchString(name)
}

// Parse parses "name", "name[port]" or "[port]name".
func Parse(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("hookup cannot be empty")
	}
	ref := Ref{Name: s, Port: NoPort}
	if m := suffixRegex.FindStringSubmatch(s); m != nil {
		ref.Name = strings.TrimSpace(m[1])
		ref.Port, _ = strconv.Atoi(m[2])
	} else if m := prefixRegex.FindStringSubmatch(s); m != nil {
		ref.Port, _ = strconv.Atoi(m[1])
		ref.Name = strings.TrimSpace(m[2])
	}
	if !ValidName(ref.Name) {
		return Ref{}, fmt.Errorf("invalid element name in hookup %q", s)
	}
	return ref, nil
}
