// internal/domain/lifecycle/kind.go
package lifecycle

import (
	"fmt"
	"strings"
)

// Kind names one family of time-driven entities.
type Kind string

const (
	KindNotification Kind = "notification"
	KindTerms        Kind = "terms"
	KindEvent        Kind = "event"
)

// SweepOrder is the fixed order in which the batch runs the per-kind sweeps.
var SweepOrder = []Kind{KindNotification, KindTerms, KindEvent}

// ParseKind accepts a kind name regardless of case and surrounding spaces.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindNotification, KindTerms, KindEvent:
		return k, nil
	default:
		return "", fmt.Errorf("unknown lifecycle kind %q", s)
	}
}

// ParseKinds parses a comma separated list, dropping duplicates.
func ParseKinds(list string) ([]Kind, error) {
	var kinds []Kind
	seen := make(map[Kind]bool)
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	return kinds, nil
}
