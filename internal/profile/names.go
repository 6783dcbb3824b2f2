package profile

import (
	"strings"

	"github.com/kozaktomas/library-sorter/internal/constants"
)

// ParseName splits "<namespace> - <label>" on the first separator.
// A name without a separator has the default label.
func ParseName(name string) (namespace, label string) {
	ns, lbl, found := strings.Cut(name, constants.NameSeparator)
	ns = strings.TrimSpace(ns)
	if !found {
		return ns, constants.DefaultLabel
	}
	lbl = strings.TrimSpace(lbl)
	if lbl == "" {
		lbl = constants.DefaultLabel
	}
	return ns, lbl
}

// FormatName joins namespace and label into a profile name.
func FormatName(namespace, label string) string {
	return strings.TrimSpace(namespace) + constants.NameSeparator + strings.TrimSpace(label)
}

// NormalizeName turns a bare name into "<name> - General" and trims both parts.
func NormalizeName(name string) string {
	return FormatName(ParseName(name))
}

// NamespaceOf returns the namespace part of a profile name.
func NamespaceOf(name string) string {
	ns, _ := ParseName(name)
	return ns
}

// SameNamespace compares namespaces case-insensitively.
func SameNamespace(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// SanitizeFolderName makes name safe to use as a single path component on
// every common filesystem. Invalid characters become "_" and leading or
// trailing dots and spaces are removed.
func SanitizeFolderName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20:
			b.WriteRune('_')
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "_"
	}
	return out
}

func normalizeKey(ns string) string {
	return strings.ToLower(strings.TrimSpace(ns))
}
