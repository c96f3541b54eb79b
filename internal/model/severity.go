package model

import "fmt"

// Severity is the ordered alert severity taxonomy, from routine
// informational findings up to conditions requiring immediate response.
type Severity int

const (
	SeverityInformation Severity = iota
	SeverityAdvisory
	SeverityWatch
	SeverityWarning
	SeverityCritical
	SeverityEmergency
)

var severityNames = map[Severity]string{
	SeverityInformation: "information",
	SeverityAdvisory:    "advisory",
	SeverityWatch:       "watch",
	SeverityWarning:     "warning",
	SeverityCritical:    "critical",
	SeverityEmergency:   "emergency",
}

// String returns the wire name of the severity level.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity converts a wire name back to a Severity.
func ParseSeverity(name string) (Severity, error) {
	for s, n := range severityNames {
		if n == name {
			return s, nil
		}
	}
	return SeverityInformation, fmt.Errorf("unknown severity %q", name)
}

// Escalate returns the severity one level up, capped at Emergency.
func (s Severity) Escalate() Severity {
	if s >= SeverityEmergency {
		return SeverityEmergency
	}
	return s + 1
}

// MarshalText implements encoding.TextMarshaler so severities serialize
// as their wire names in JSON alert envelopes.
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
