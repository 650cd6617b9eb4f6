package config

import (
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// Logical field names with a fixed role in custom_field_mapping.
const (
	EpicLinkField = "epicLink"
	SprintField   = "sprint"
)

// FieldMapping is the jira_special_fields section. It decides how each
// issue field is shaped before it is sent to Jira.
type FieldMapping struct {
	NameFormatFields         []string           `yaml:"name_format_fields"`
	KeyFormatFields          []string           `yaml:"key_format_fields"`
	ArrayFormatFields        []string           `yaml:"array_format_fields"`
	CustomFieldMapping       CustomFieldMapping `yaml:"custom_field_mapping"`
	PostCreationUpdateFields []string           `yaml:"post_creation_update_fields"`
}

// CustomFieldMapping maps logical field names to Jira custom field ids.
// KeyFormatFields and NameFormatFields hold custom fields whose values are
// also wrapped as {key: v} or {name: v}.
type CustomFieldMapping struct {
	Fields           map[string]string
	KeyFormatFields  map[string]string
	NameFormatFields map[string]string
}

// UnmarshalYAML separates the nested key_format_fields and name_format_fields
// tables from plain logical-name to field-id entries.
func (m *CustomFieldMapping) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: custom_field_mapping must be a mapping", n.Line)
	}
	m.Fields = map[string]string{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		val := n.Content[i+1]
		switch key {
		case "key_format_fields":
			if err := val.Decode(&m.KeyFormatFields); err != nil {
				return fmt.Errorf("custom_field_mapping.key_format_fields: %w", err)
			}
		case "name_format_fields":
			if err := val.Decode(&m.NameFormatFields); err != nil {
				return fmt.Errorf("custom_field_mapping.name_format_fields: %w", err)
			}
		default:
			var id string
			if err := val.Decode(&id); err != nil {
				return fmt.Errorf("custom_field_mapping.%s: %w", key, err)
			}
			m.Fields[key] = id
		}
	}
	return nil
}

// Validate requires the epic link mapping used when attaching issues to epics.
func (f FieldMapping) Validate() error {
	if f.EpicLinkFieldID() == "" {
		return errors.New("jira_special_fields.custom_field_mapping.epicLink is required")
	}
	return nil
}

// EpicLinkFieldID returns the custom field id of the epic link.
func (f FieldMapping) EpicLinkFieldID() string {
	return f.CustomFieldMapping.Fields[EpicLinkField]
}

// SprintFieldID returns the custom field id of the sprint, or "" when unmapped.
func (f FieldMapping) SprintFieldID() string {
	return f.CustomFieldMapping.Fields[SprintField]
}

// IsPostCreation reports whether a field can only be set by updating an existing issue.
func (f FieldMapping) IsPostCreation(name string) bool {
	return slices.Contains(f.PostCreationUpdateFields, name)
}

// IsKeyFormat reports whether a field is wrapped as {key: v}.
func (f FieldMapping) IsKeyFormat(name string) bool {
	return slices.Contains(f.KeyFormatFields, name)
}

// IsNameFormat reports whether a field is wrapped as {name: v}.
func (f FieldMapping) IsNameFormat(name string) bool {
	return slices.Contains(f.NameFormatFields, name)
}

// IsArrayFormat reports whether a wrapped field is always sent as a list.
func (f FieldMapping) IsArrayFormat(name string) bool {
	return slices.Contains(f.ArrayFormatFields, name)
}
