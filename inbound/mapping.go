package inbound

import (
	"fmt"
	"strings"
)

// RawKey is the reserved target field that always carries the original
// payload, regardless of mapping.
const RawKey = "_raw"

// FieldPath addresses a value inside a JSON payload by dot-separated
// segments, e.g. "user.email".
type FieldPath []string

func ParseFieldPath(raw string) (FieldPath, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("inbound: field path is required")
	}
	segments := strings.Split(raw, ".")
	path := make(FieldPath, 0, len(segments))
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			return nil, fmt.Errorf("inbound: field path %q has an empty segment", raw)
		}
		path = append(path, segment)
	}
	return path, nil
}

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// Resolve walks the payload along the path. Evaluation is total: a missing
// segment or a non-object intermediate yields (nil, false), never an error.
func (p FieldPath) Resolve(payload map[string]any) (any, bool) {
	if len(p) == 0 {
		return nil, false
	}
	var current any = payload
	for _, segment := range p {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok := node[segment]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}

// ApplyMapping projects the raw payload through (sourcePath -> targetField)
// pairs. Absent source paths are skipped; the full raw payload is retained
// under RawKey. An empty mapping passes the payload through top-level.
func ApplyMapping(mapping map[string]string, payload map[string]any) (map[string]any, error) {
	mapped := make(map[string]any, len(mapping)+1)

	if len(mapping) == 0 {
		for key, value := range payload {
			mapped[key] = value
		}
	}
	for sourcePath, targetField := range mapping {
		path, err := ParseFieldPath(sourcePath)
		if err != nil {
			return nil, err
		}
		target := strings.TrimSpace(targetField)
		if target == "" {
			return nil, fmt.Errorf("inbound: mapping for %q has an empty target field", sourcePath)
		}
		if target == RawKey {
			return nil, fmt.Errorf("inbound: target field %q is reserved", RawKey)
		}
		value, ok := path.Resolve(payload)
		if !ok {
			continue
		}
		mapped[target] = value
	}

	mapped[RawKey] = payload
	return mapped, nil
}
