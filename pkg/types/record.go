package types

import (
	"sort"
	"strings"
)

// RawRecord is the untyped key->values bag produced by a single extraction
// strategy before any field mapping or canonicalisation happens. Keys are
// adapter-chosen; values keep source order.
type RawRecord map[string][]string

// Add appends a value under key, dropping empty strings.
func (r RawRecord) Add(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	r[key] = append(r[key], value)
}

// First returns the first value stored under key, or "".
func (r RawRecord) First(key string) string {
	if vs, ok := r[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Record is the canonical directory entry shared by every site. Once
// produced by normalisation it is never mutated.
type Record struct {
	FirstName    string   `json:"first_name,omitempty"`
	LastName     string   `json:"last_name,omitempty"`
	FullName     string   `json:"full_name,omitempty"`
	Organization string   `json:"organization,omitempty"`
	City         string   `json:"city,omitempty"`
	Region       string   `json:"region,omitempty"`
	PostalCode   string   `json:"postal_code,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Email        string   `json:"email,omitempty"`
	Website      string   `json:"website,omitempty"`
	ExternalID   string   `json:"external_id,omitempty"`
	Status       string   `json:"status,omitempty"`
	ProfileURL   string   `json:"profile_url,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Source       string   `json:"source,omitempty"`
}

// DedupKey derives the identity used to collapse duplicates within one run:
// the external identifier when the site provides one, otherwise the full
// name plus location.
func (r Record) DedupKey() string {
	if r.ExternalID != "" {
		return "id\x00" + strings.ToLower(r.ExternalID)
	}
	return "nm\x00" + strings.ToLower(r.FullName) + "\x00" +
		strings.ToLower(r.City) + "\x00" + strings.ToLower(r.Region)
}

// WorkUnit is one point in the cross-product of a site's search axes,
// processed end-to-end by a single session and pagination driver.
type WorkUnit struct {
	Index  int
	Values map[string]string
}

// Label renders the unit's axis values in a stable order for logs and events.
func (u WorkUnit) Label() string {
	if len(u.Values) == 0 {
		return "all"
	}
	keys := make([]string, 0, len(u.Values))
	for k := range u.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+u.Values[k])
	}
	return strings.Join(parts, " ")
}

// Value returns the unit's value for an axis, or "".
func (u WorkUnit) Value(axis string) string {
	return u.Values[axis]
}
