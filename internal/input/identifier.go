// Package input owns the capture side of the relay: evdev device access,
// device identity matching and hotplug discovery.
package input

import (
	"regexp"
	"strings"
)

// macPattern matches a Bluetooth/USB hardware address with either colon
// or dash separators.
var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

type identifierKind int

const (
	identifierPath identifierKind = iota
	identifierMAC
	identifierName
)

// Identifier selects input devices. It is parsed from a config entry and
// interpreted as one of:
//
//   - an event node path ("/dev/input/event3")
//   - a hardware address ("A1:B2:C3:D4:E5:F6", dashes accepted)
//   - otherwise, a substring of the device name ("Logitech")
type Identifier struct {
	raw        string
	normalized string
	kind       identifierKind
}

// ParseIdentifier classifies a raw config value.
func ParseIdentifier(value string) Identifier {
	trimmed := strings.TrimSpace(value)
	switch {
	case strings.HasPrefix(trimmed, "/dev/input/"):
		return Identifier{raw: trimmed, normalized: trimmed, kind: identifierPath}
	case macPattern.MatchString(trimmed):
		normalized := strings.ToUpper(strings.ReplaceAll(trimmed, "-", ":"))
		return Identifier{raw: trimmed, normalized: normalized, kind: identifierMAC}
	default:
		return Identifier{raw: trimmed, normalized: trimmed, kind: identifierName}
	}
}

// ParseIdentifiers classifies a list of config values.
func ParseIdentifiers(values []string) []Identifier {
	ids := make([]Identifier, 0, len(values))
	for _, v := range values {
		ids = append(ids, ParseIdentifier(v))
	}
	return ids
}

// Matches reports whether the identifier selects the given device.
func (i Identifier) Matches(info DeviceInfo) bool {
	switch i.kind {
	case identifierPath:
		return info.Path == i.normalized
	case identifierMAC:
		uniq := strings.ToUpper(strings.ReplaceAll(info.Uniq, "-", ":"))
		return uniq == i.normalized
	default:
		return i.normalized != "" && strings.Contains(info.Name, i.normalized)
	}
}

// MatchesAny reports whether any identifier in the list selects the
// device.
func MatchesAny(ids []Identifier, info DeviceInfo) bool {
	for _, id := range ids {
		if id.Matches(info) {
			return true
		}
	}
	return false
}

func (i Identifier) String() string { return i.raw }
