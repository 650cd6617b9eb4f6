package jira

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tuannvm/jira-issues-creator/internal/config"
	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/models"
)

// FieldValue is one transformed field. Omit is set when the field must not be
// sent, in which case Warning explains why.
type FieldValue struct {
	Name    string
	Value   interface{}
	Omit    bool
	Warning string
}

// FieldResult is a built fields payload plus the soft failures met while building it.
type FieldResult struct {
	Fields   map[string]interface{}
	Warnings []string
}

type fieldRule struct {
	name  string
	match func(field string) bool
	apply func(ctx context.Context, projectKey, field string, value interface{}) (FieldValue, error)
}

// FieldTransformer shapes raw issue fields into Jira's payload format. Rules
// are tried in order and the first match wins; unmatched fields pass through.
type FieldTransformer struct {
	mapping config.FieldMapping
	sprints SprintLookup
	rules   []fieldRule
}

// NewFieldTransformer builds a transformer for mapping. sprints may be nil when
// no sprint custom field is mapped.
func NewFieldTransformer(mapping config.FieldMapping, sprints SprintLookup) *FieldTransformer {
	t := &FieldTransformer{mapping: mapping, sprints: sprints}
	custom := mapping.CustomFieldMapping
	t.rules = []fieldRule{
		{
			name:  "key_format",
			match: mapping.IsKeyFormat,
			apply: t.formatRule("key", true, func(f string) string { return f }),
		},
		{
			name:  "name_format",
			match: mapping.IsNameFormat,
			apply: t.formatRule("name", true, func(f string) string { return f }),
		},
		{
			name:  "sprint",
			match: func(f string) bool { return f == config.SprintField && mapping.SprintFieldID() != "" },
			apply: t.sprintRule,
		},
		{
			name:  "custom_field",
			match: func(f string) bool { _, ok := custom.Fields[f]; return ok },
			apply: func(_ context.Context, _, f string, v interface{}) (FieldValue, error) {
				return FieldValue{Name: custom.Fields[f], Value: v}, nil
			},
		},
		{
			name:  "custom_key_format",
			match: func(f string) bool { _, ok := custom.KeyFormatFields[f]; return ok },
			apply: t.formatRule("key", false, func(f string) string { return custom.KeyFormatFields[f] }),
		},
		{
			name:  "custom_name_format",
			match: func(f string) bool { _, ok := custom.NameFormatFields[f]; return ok },
			apply: t.formatRule("name", false, func(f string) string { return custom.NameFormatFields[f] }),
		},
	}
	return t
}

// Excluded reports whether a field name describes the issue tree or its links
// and is never sent as an issue field.
func Excluded(field string) bool {
	return field == models.KeyIssues || field == models.KeyIssueLinks
}

// Transform shapes a single field. Excluded fields come back with Omit set.
func (t *FieldTransformer) Transform(ctx context.Context, projectKey, field string, value interface{}) (FieldValue, error) {
	if Excluded(field) {
		return FieldValue{Name: field, Omit: true}, nil
	}
	for _, r := range t.rules {
		if r.match(field) {
			return r.apply(ctx, projectKey, field, value)
		}
	}
	return FieldValue{Name: field, Value: value}, nil
}

// Build transforms every field for which include returns true. A nil include
// takes all fields. Fields are visited in name order so lookups happen in a
// stable sequence.
func (t *FieldTransformer) Build(ctx context.Context, projectKey string, fields models.Fields, include func(field string) bool) (*FieldResult, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	res := &FieldResult{Fields: make(map[string]interface{}, len(names))}
	for _, name := range names {
		if include != nil && !include(name) {
			continue
		}
		fv, err := t.Transform(ctx, projectKey, name, fields[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		if fv.Warning != "" {
			log.Warnf("%s", fv.Warning)
			res.Warnings = append(res.Warnings, fv.Warning)
		}
		if fv.Omit {
			continue
		}
		res.Fields[fv.Name] = fv.Value
	}
	return res, nil
}

func (t *FieldTransformer) formatRule(wrapKey string, arrays bool, target func(string) string) func(context.Context, string, string, interface{}) (FieldValue, error) {
	return func(_ context.Context, _, field string, value interface{}) (FieldValue, error) {
		wrapped := wrapValue(value, wrapKey)
		if arrays && t.mapping.IsArrayFormat(field) {
			if _, isList := wrapped.([]interface{}); !isList {
				wrapped = []interface{}{wrapped}
			}
		}
		return FieldValue{Name: target(field), Value: wrapped}, nil
	}
}

func (t *FieldTransformer) sprintRule(ctx context.Context, projectKey, field string, value interface{}) (FieldValue, error) {
	fieldID := t.mapping.SprintFieldID()
	if id, ok := value.(int); ok {
		return FieldValue{Name: fieldID, Value: id}, nil
	}
	if t.sprints == nil {
		return FieldValue{}, errors.New("sprint lookup is not configured")
	}
	name := fmt.Sprint(value)
	id, err := t.sprints.ResolveSprintID(ctx, projectKey, name)
	if err != nil {
		if IsNotFound(err) {
			return FieldValue{
				Name:    fieldID,
				Omit:    true,
				Warning: err.Error() + "; sprint field omitted",
			}, nil
		}
		return FieldValue{}, err
	}
	return FieldValue{Name: fieldID, Value: id}, nil
}

// wrapValue produces {key: v}, or a list of such wrappers for mapping input.
// Keys of the input mapping are dropped.
func wrapValue(value interface{}, key string) interface{} {
	switch v := value.(type) {
	case models.OrderedMap:
		out := make([]interface{}, 0, v.Len())
		for _, k := range v.Keys {
			out = append(out, map[string]interface{}{key: v.Values[k]})
		}
		return out
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]interface{}, 0, len(v))
		for _, k := range keys {
			out = append(out, map[string]interface{}{key: v[k]})
		}
		return out
	default:
		return map[string]interface{}{key: value}
	}
}
