package monitor

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

// tenantField is the member compared against the bound tenant.
const tenantField = "tenant_id"

// envelopeKeys name the members of paginated responses that hold the rows.
var envelopeKeys = []string{"results", "data", "items"}

// Violation is one response object owned by another tenant.
type Violation struct {
	// Index is the position in the list, -1 for a single object.
	Index int
	// Envelope is the envelope member the object was found in, if any.
	Envelope string
	// Found is the tenant_id the object carried.
	Found string
}

// Inspect returns the objects in a JSON body whose tenant_id differs from
// bound. Bodies that are not valid JSON yield no violations.
func Inspect(bound string, body []byte) []Violation {
	bound = rls.Canonical(bound)
	if bound == "" || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil
	}

	var out []Violation
	switch v := doc.(type) {
	case map[string]any:
		if found, ok := mismatch(bound, v); ok {
			out = append(out, Violation{Index: -1, Found: found})
		}
		for _, key := range envelopeKeys {
			out = append(out, inspectMember(bound, key, v[key])...)
		}
	case []any:
		out = inspectList(bound, "", v)
	}
	return out
}

func inspectMember(bound, key string, member any) []Violation {
	switch m := member.(type) {
	case []any:
		return inspectList(bound, key, m)
	case map[string]any:
		if found, ok := mismatch(bound, m); ok {
			return []Violation{{Index: -1, Envelope: key, Found: found}}
		}
	}
	return nil
}

func inspectList(bound, envelope string, items []any) []Violation {
	var out []Violation
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if found, ok := mismatch(bound, obj); ok {
			out = append(out, Violation{Index: i, Envelope: envelope, Found: found})
		}
	}
	return out
}

// mismatch reports the object's tenant_id when it is present, not null and
// different from bound. Non-string values are compared by their JSON text.
func mismatch(bound string, obj map[string]any) (string, bool) {
	raw, ok := obj[tenantField]
	if !ok || raw == nil {
		return "", false
	}

	var found string
	switch v := raw.(type) {
	case string:
		found = rls.Canonical(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		found = string(b)
	}
	return found, !strings.EqualFold(found, bound)
}
