package util

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseDocRef extracts a document id from a caller-supplied reference,
// which may be a bare id or a full Grist URL such as
// "https://docs.getgrist.com/doc/abc123xyz/p/2".
func ParseDocRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty document reference")
	}
	if !strings.Contains(ref, "://") {
		return ref, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid document URL %q: %w", ref, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		// Both "/doc/<id>" and "/o/<org>/doc/<id>" occur in the wild.
		if p == "doc" && i+1 < len(parts) {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("no document id found in URL %q", ref)
}
