package catalog

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Severity is an ordered risk level. The zero value is SeverityNone.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityModerate
	SeverityHigh
	SeverityCrisis
)

var severityNames = [...]string{"none", "low", "moderate", "high", "crisis"}

// String returns the lowercase label.
func (s Severity) String() string {
	if s < SeverityNone || s > SeverityCrisis {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s >= other
}

// RequiresIntervention is true for high and crisis.
func (s Severity) RequiresIntervention() bool {
	return s >= SeverityHigh
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// ParseSeverity parses a label such as "moderate". Matching is case-insensitive.
func ParseSeverity(raw string) (Severity, error) {
	label := strings.ToLower(strings.TrimSpace(raw))
	for i, name := range severityNames {
		if name == label {
			return Severity(i), nil
		}
	}
	return SeverityNone, fmt.Errorf("catalog: unknown severity %q", raw)
}

// MarshalText implements encoding.TextMarshaler so JSON output carries labels.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UnmarshalYAML decodes a severity label from a catalog file.
func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	return s.UnmarshalText([]byte(value.Value))
}
