package helpers

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueryTimeLayout is the plain layout accepted for range parameters besides RFC 3339.
const QueryTimeLayout = "2006-01-02 15:04:05"

// ValidID reports whether s is a canonical UUID.
func ValidID(s string) bool {
	return uuid.Validate(s) == nil
}

// PathID returns the named path value when it is a valid id.
func PathID(r *http.Request, name string) (string, error) {
	id := r.PathValue(name)
	if !ValidID(id) {
		return "", fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// QueryList collects a repeated or comma separated parameter, skipping blanks.
func QueryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// QueryIDs is QueryList restricted to valid ids.
func QueryIDs(r *http.Request, key string) ([]string, error) {
	ids := QueryList(r, key)
	for _, id := range ids {
		if !ValidID(id) {
			return nil, fmt.Errorf("invalid %s: %q", key, id)
		}
	}
	return ids, nil
}

// QueryBool parses an optional boolean; absent yields nil.
func QueryBool(r *http.Request, key string) (*bool, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, s)
	}
	return &v, nil
}

// QueryTime parses an optional timestamp in RFC 3339 or QueryTimeLayout (UTC).
func QueryTime(r *http.Request, key string) (*time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(QueryTimeLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, s)
	}
	return &t, nil
}

// ClientIP returns the first X-Forwarded-For entry, falling back to the peer address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
