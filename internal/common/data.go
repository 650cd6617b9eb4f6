package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	log "github.com/tuannvm/jira-issues-creator/internal/logging"
	"github.com/tuannvm/jira-issues-creator/internal/models"
)

// ExtractIssuesFile reads an issues file from a message. A DataPart
// carrying the issues file as an object is tried first, then a TextPart
// holding YAML or JSON.
func ExtractIssuesFile(message protocol.Message) (*models.IssuesFile, error) {
	if len(message.Parts) == 0 {
		return nil, errors.New("message has no parts")
	}

	var errs []error
	for _, part := range message.Parts {
		var raw []byte
		switch p := part.(type) {
		case protocol.DataPart:
			raw = marshalData(p.Data)
		case *protocol.DataPart:
			if p != nil {
				raw = marshalData(p.Data)
			}
		case protocol.TextPart:
			raw = []byte(stripFence(p.Text))
		case *protocol.TextPart:
			if p != nil {
				raw = []byte(stripFence(p.Text))
			}
		}
		if len(raw) == 0 {
			continue
		}
		file, err := parseIssuesFile(raw)
		if err != nil {
			log.Debugf("Message part is not an issues file: %v", err)
			errs = append(errs, err)
			continue
		}
		return file, nil
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("could not extract issues file from message: %w", errors.Join(errs...))
	}
	return nil, errors.New("could not extract issues file from message")
}

func parseIssuesFile(raw []byte) (*models.IssuesFile, error) {
	file, err := models.ParseIssuesFile(raw)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(file.ProjectKey) == "" {
		return nil, errors.New("projectKey is required")
	}
	if file.Count() == 0 {
		return nil, errors.New("issues file has no epics or issues")
	}
	return file, nil
}

func marshalData(data interface{}) []byte {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		log.Debugf("Failed to marshal DataPart.Data: %v", err)
		return nil
	}
	return raw
}

// stripFence removes a surrounding Markdown code fence.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.Index(text, "\n"); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
