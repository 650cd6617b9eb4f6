package models

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Issue types that change how an issue is attached to its parent.
const (
	IssueTypeEpic    = "Epic"
	IssueTypeSubtask = "Sub-task"
)

// DefaultLinkType is used when a link does not name its relationship.
const DefaultLinkType = "Related"

// Keys in an issues file that describe the tree rather than tracker fields.
const (
	KeyIssues     = "issues"
	KeyIssueLinks = "issuelinks"
	KeyLinkType   = "linkType"
	KeyIssueType  = "issuetype"
)

// Fields maps a field name to its raw value: a scalar, an OrderedMap, a
// map[string]interface{} or a []interface{}.
type Fields map[string]interface{}

// IssueSpec is one node of the issue tree read from an issues file.
type IssueSpec struct {
	Fields     Fields
	IssueType  string
	LinkType   string // relationship used for the implicit link to the parent node
	Children   []IssueSpec
	IssueLinks []IssueLink
}

// IssueLink requests a link between the new issue and an existing one.
type IssueLink struct {
	Type      string `json:"type"`
	TargetKey string `json:"targetKey"`
}

// IssuesFile is the top-level issues document.
type IssuesFile struct {
	ProjectKey string
	Epics      []IssueSpec
	Issues     []IssueSpec
}

// CreatedIssue is emitted once per successfully created node.
type CreatedIssue struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	IssueType string `json:"issueType,omitempty"`
	Summary   string `json:"summary,omitempty"`
	EpicKey   string `json:"epicKey,omitempty"`
	ParentKey string `json:"parentKey,omitempty"`
}

// IssuesCreatedResult is returned by the creator agent when a task finishes.
type IssuesCreatedResult struct {
	RunID      string         `json:"runId"`
	ProjectKey string         `json:"projectKey"`
	Created    []CreatedIssue `json:"created"`
	Warnings   []string       `json:"warnings,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// IsSubtask reports whether the node attaches to its parent through the parent field.
func (s IssueSpec) IsSubtask() bool {
	return strings.EqualFold(s.IssueType, IssueTypeSubtask)
}

// Summary returns the summary field as text, or "" when absent.
func (s IssueSpec) Summary() string {
	if v, ok := s.Fields["summary"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// ParentLinkType returns the relationship for the implicit parent link.
func (s IssueSpec) ParentLinkType() string {
	if s.LinkType != "" {
		return s.LinkType
	}
	return DefaultLinkType
}

// Count returns the number of nodes in the file, epics and issues included.
func (f *IssuesFile) Count() int {
	return countSpecs(f.Epics) + countSpecs(f.Issues)
}

func countSpecs(specs []IssueSpec) int {
	n := 0
	for _, s := range specs {
		n += 1 + countSpecs(s.Children)
	}
	return n
}

// ParseIssuesFile decodes a YAML (or JSON) issues file.
func ParseIssuesFile(data []byte) (*IssuesFile, error) {
	var f IssuesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid issues file: %w", err)
	}
	return &f, nil
}

// UnmarshalYAML accepts both projectKey and project_key.
func (f *IssuesFile) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		ProjectKey    string      `yaml:"projectKey"`
		ProjectKeyAlt string      `yaml:"project_key"`
		Epics         []IssueSpec `yaml:"epics"`
		Issues        []IssueSpec `yaml:"issues"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	f.ProjectKey = raw.ProjectKey
	if f.ProjectKey == "" {
		f.ProjectKey = raw.ProjectKeyAlt
	}
	f.Epics = raw.Epics
	f.Issues = raw.Issues
	return nil
}

// UnmarshalYAML splits a flat issue mapping into tracker fields and tree structure.
func (s *IssueSpec) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: issue must be a mapping", n.Line)
	}
	s.Fields = Fields{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		val := n.Content[i+1]
		switch key {
		case KeyIssues:
			if err := val.Decode(&s.Children); err != nil {
				return fmt.Errorf("issues: %w", err)
			}
		case KeyIssueLinks:
			if err := val.Decode(&s.IssueLinks); err != nil {
				return fmt.Errorf("issuelinks: %w", err)
			}
		case KeyLinkType:
			if err := val.Decode(&s.LinkType); err != nil {
				return fmt.Errorf("linkType: %w", err)
			}
		default:
			v, err := decodeValue(val)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			s.Fields[key] = v
			if key == KeyIssueType {
				s.IssueType = issueTypeName(v)
			}
		}
	}
	return nil
}

// UnmarshalYAML accepts {type, targetKey} and the tracker's own
// {type: {name}, outwardIssue: {key}} shape.
func (l *IssueLink) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		Type         yaml.Node `yaml:"type"`
		TargetKey    string    `yaml:"targetKey"`
		OutwardIssue struct {
			Key string `yaml:"key"`
		} `yaml:"outwardIssue"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	switch raw.Type.Kind {
	case yaml.ScalarNode:
		l.Type = raw.Type.Value
	case yaml.MappingNode:
		var named struct {
			Name string `yaml:"name"`
		}
		if err := raw.Type.Decode(&named); err != nil {
			return err
		}
		l.Type = named.Name
	}
	if l.Type == "" {
		l.Type = DefaultLinkType
	}
	l.TargetKey = raw.TargetKey
	if l.TargetKey == "" {
		l.TargetKey = raw.OutwardIssue.Key
	}
	if l.TargetKey == "" {
		return fmt.Errorf("line %d: issue link has no target key", n.Line)
	}
	return nil
}

func issueTypeName(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case OrderedMap:
		if name, ok := t.Values["name"].(string); ok {
			return name
		}
	}
	return ""
}

func decodeValue(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return decodeValue(n.Content[0])
	case yaml.AliasNode:
		return decodeValue(n.Alias)
	case yaml.MappingNode:
		m := OrderedMap{Values: make(map[string]interface{}, len(n.Content)/2)}
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := decodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(n.Content[i].Value, v)
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := decodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
