package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"github.com/tuannvm/jira-issues-creator/internal/audit"
	"github.com/tuannvm/jira-issues-creator/internal/models"
)

func printJSON(v interface{}) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(result models.IssuesCreatedResult) error {
	if viper.GetBool("json") {
		return printJSON(result)
	}
	writeIssuesTable(os.Stdout, result.Created)
	return nil
}

func writeIssuesTable(w io.Writer, issues []models.CreatedIssue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, "No issues created.")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Key", "Type", "Summary", "Parent", "URL"})
	for _, issue := range issues {
		parent := issue.ParentKey
		if parent == "" {
			parent = issue.EpicKey
		}
		tw.AppendRow(table.Row{issue.Key, issue.IssueType, issue.Summary, parent, issue.URL})
	}
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d created", len(issues)), "", ""})
	tw.Render()
}

func writeRunsTable(w io.Writer, runs []audit.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Project", "Source", "Status", "Issues", "Started", "Error"})
	for _, r := range runs {
		tw.AppendRow(table.Row{
			r.ID, r.ProjectKey, r.Source, r.Status, r.IssueCount,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), firstLine(r.Error),
		})
	}
	tw.Render()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
