package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"
)

func TestExtractIssuesFile_TextPart(t *testing.T) {
	text := "```yaml\nprojectKey: PROJ\nepics:\n  - summary: E\n    issuetype: Epic\n    issues:\n      - summary: S\n        issuetype: Story\n```"
	file, err := ExtractIssuesFile(protocol.Message{Parts: []protocol.Part{protocol.NewTextPart(text)}})
	require.NoError(t, err)
	assert.Equal(t, "PROJ", file.ProjectKey)
	assert.Equal(t, 2, file.Count())
}

func TestExtractIssuesFile_DataPart(t *testing.T) {
	data := map[string]interface{}{
		"projectKey": "PROJ",
		"issues": []interface{}{
			map[string]interface{}{"summary": "one", "issuetype": "Task"},
		},
	}
	for name, part := range map[string]protocol.Part{
		"value":   protocol.DataPart{Type: "data", Data: data},
		"pointer": &protocol.DataPart{Type: "data", Data: data},
	} {
		t.Run(name, func(t *testing.T) {
			file, err := ExtractIssuesFile(protocol.Message{Parts: []protocol.Part{part}})
			require.NoError(t, err)
			assert.Equal(t, "PROJ", file.ProjectKey)
			require.Len(t, file.Issues, 1)
			assert.Equal(t, "one", file.Issues[0].Summary())
		})
	}
}

func TestExtractIssuesFile_SkipsUnusableParts(t *testing.T) {
	msg := protocol.Message{Parts: []protocol.Part{
		protocol.NewTextPart("please create these"),
		protocol.NewTextPart(`{"projectKey": "PROJ", "issues": [{"summary": "x", "issuetype": "Task"}]}`),
	}}
	file, err := ExtractIssuesFile(msg)
	require.NoError(t, err)
	assert.Equal(t, 1, file.Count())
}

func TestExtractIssuesFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		msg  protocol.Message
	}{
		{name: "no parts", msg: protocol.Message{}},
		{name: "missing project", msg: protocol.Message{Parts: []protocol.Part{protocol.NewTextPart("issues:\n  - summary: x\n")}}},
		{name: "no issues", msg: protocol.Message{Parts: []protocol.Part{protocol.NewTextPart("projectKey: PROJ\n")}}},
		{name: "empty text", msg: protocol.Message{Parts: []protocol.Part{protocol.NewTextPart("  ")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractIssuesFile(tt.msg)
			assert.Error(t, err)
		})
	}
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, "a: 1", stripFence("```yaml\na: 1\n```"))
	assert.Equal(t, "a: 1", stripFence("  a: 1  "))
}

func TestTextPartsAndMetadata(t *testing.T) {
	msg := &protocol.Message{Parts: []protocol.Part{protocol.NewTextPart("a"), protocol.DataPart{Data: 1}}}
	assert.Equal(t, []string{"a"}, TextParts(msg))
	assert.Nil(t, TextParts(nil))

	md := map[string]interface{}{"url": "u", "n": 1}
	assert.Equal(t, "u", MetadataString(md, "url"))
	assert.Empty(t, MetadataString(md, "n"))
	assert.Empty(t, MetadataString(nil, "url"))
}
