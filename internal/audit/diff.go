package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"
)

// Snapshot flattens an entity into a generic map via its YAML encoding, so
// diffing sees exactly the fields that get persisted.
func Snapshot(v any) map[string]any {
	if v == nil {
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

// Diff computes the field-level changes between two snapshots. It descends
// into nested maps one level only, keeping the cost bounded regardless of
// how deep an aggregate nests its sub-documents.
func Diff(before, after map[string]any) []FieldChange {
	var changes []FieldChange
	for _, key := range unionKeys(before, after) {
		b, inBefore := before[key]
		a, inAfter := after[key]

		bMap, bIsMap := b.(map[string]any)
		aMap, aIsMap := a.(map[string]any)
		if inBefore && inAfter && bIsMap && aIsMap {
			for _, sub := range unionKeys(bMap, aMap) {
				sb, sInB := bMap[sub]
				sa, sInA := aMap[sub]
				if change, ok := diffValue(key+"."+sub, sb, sInB, sa, sInA); ok {
					changes = append(changes, change)
				}
			}
			continue
		}

		if change, ok := diffValue(key, b, inBefore, a, inAfter); ok {
			changes = append(changes, change)
		}
	}
	return changes
}

func diffValue(field string, before any, inBefore bool, after any, inAfter bool) (FieldChange, bool) {
	b := render(before, inBefore)
	a := render(after, inAfter)
	if b == a {
		return FieldChange{}, false
	}
	// Multiline text gets a unified diff instead of two full copies.
	if strings.Contains(b, "\n") || strings.Contains(a, "\n") {
		return FieldChange{
			Field: field,
			After: unifiedDiff(field, b, a),
		}, true
	}
	return FieldChange{Field: field, Before: b, After: a}, true
}

func render(v any, present bool) string {
	if !present || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func unifiedDiff(field, before, after string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: field,
		ToFile:   field,
		Context:  1,
	})
	if err != nil {
		return after
	}
	return text
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
