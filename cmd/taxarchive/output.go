package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"taxarchive/internal/archive"
)

const (
	formatText = "text"
	formatYAML = "yaml"
)

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().String("format", formatText, "Output format: text or yaml")
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	switch format {
	case formatText, formatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

type issueDoc struct {
	Level   string `yaml:"level"`
	Path    string `yaml:"path"`
	Message string `yaml:"message"`
}

type reportDoc struct {
	Valid      bool       `yaml:"valid"`
	TotalFiles int        `yaml:"total_files"`
	Errors     int        `yaml:"errors"`
	Warnings   int        `yaml:"warnings"`
	Issues     []issueDoc `yaml:"issues,omitempty"`
}

type moveDoc struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	SHA256 string `yaml:"sha256,omitempty"`
}

type planDoc struct {
	Copy       []moveDoc `yaml:"copy,omitempty"`
	Update     []moveDoc `yaml:"update,omitempty"`
	Quarantine []moveDoc `yaml:"quarantine,omitempty"`
	Delete     []string  `yaml:"delete,omitempty"`
}

func moves(actions []archive.Action) []moveDoc {
	docs := make([]moveDoc, 0, len(actions))
	for _, act := range actions {
		docs = append(docs, moveDoc{From: act.Record.Path, To: act.Target, SHA256: act.Record.ContentHash.String})
	}
	return docs
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func writeIssues(w io.Writer, format string, vr archive.ValidationReport) error {
	if format == formatYAML {
		doc := reportDoc{
			Valid:      vr.Valid,
			TotalFiles: vr.TotalFiles,
			Errors:     vr.Count(archive.LevelError),
			Warnings:   vr.Count(archive.LevelWarning),
		}
		for _, i := range vr.Issues {
			doc.Issues = append(doc.Issues, issueDoc{Level: string(i.Level), Path: i.Path, Message: i.Message})
		}
		return writeYAML(w, doc)
	}

	for _, i := range vr.Issues {
		level := "WARN "
		if i.Level == archive.LevelError {
			level = "ERROR"
		}
		fmt.Fprintf(w, "%s  %s: %s\n", level, i.Path, i.Message)
	}
	_, err := fmt.Fprintf(w, "%d file(s), %d error(s), %d warning(s)\n",
		vr.TotalFiles, vr.Count(archive.LevelError), vr.Count(archive.LevelWarning))
	return err
}

func writePlan(w io.Writer, format string, plan archive.SyncPlan) error {
	if format == formatYAML {
		return writeYAML(w, planDoc{
			Copy:       moves(plan.ToCopy),
			Update:     moves(plan.ToUpdate),
			Quarantine: moves(plan.DuplicateMoves),
			Delete:     plan.ToDelete,
		})
	}

	if plan.Empty() {
		_, err := fmt.Fprintln(w, "Archive is in canonical order.")
		return err
	}
	for _, act := range plan.ToCopy {
		fmt.Fprintf(w, "copy        %s -> %s\n", act.Record.Path, act.Target)
	}
	for _, act := range plan.ToUpdate {
		fmt.Fprintf(w, "update      %s -> %s\n", act.Record.Path, act.Target)
	}
	for _, act := range plan.DuplicateMoves {
		fmt.Fprintf(w, "quarantine  %s -> %s\n", act.Record.Path, act.Target)
	}
	for _, p := range plan.ToDelete {
		fmt.Fprintf(w, "delete      %s\n", p)
	}
	return nil
}
