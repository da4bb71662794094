package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"taxarchive/internal/filename"
)

// name command
var nameCmd = &cobra.Command{
	Use:   "name",
	Short: "Build and parse schema filenames",
}

var nameBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Print the schema filename for the given fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		var fields nameFields
		fields.date, _ = f.GetString("date")
		fields.owner, _ = f.GetString("owner")
		fields.intent, _ = f.GetString("intent")
		fields.category, _ = f.GetString("category")
		fields.source, _ = f.GetString("source")
		fields.amount, _ = f.GetString("amount")
		fields.description, _ = f.GetString("description")
		fields.status, _ = f.GetString("status")
		fields.ext, _ = f.GetString("ext")

		p, err := fields.parts()
		if err != nil {
			return err
		}
		fmt.Println(filename.Build(p))
		return nil
	},
}

var nameParseCmd = &cobra.Command{
	Use:   "parse NAME",
	Short: "Decode a schema filename",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := filename.Parse(args[0])
		if !ok {
			return fmt.Errorf("%s does not follow the naming schema", args[0])
		}
		amount := "-"
		if p.Amount.Valid {
			amount = p.Amount.Decimal.StringFixed(2)
		}
		status := "-"
		if p.Status != filename.StatusNone {
			status = string(p.Status)
		}
		fmt.Printf("Date:        %s\n", p.Date.Format(filename.DateLayout))
		fmt.Printf("Owner:       %s\n", p.Owner)
		fmt.Printf("Intent:      %s\n", p.Intent)
		fmt.Printf("Category:    %s\n", p.Category)
		fmt.Printf("Source:      %s\n", p.Source)
		fmt.Printf("Amount:      %s\n", amount)
		fmt.Printf("Description: %s\n", p.Description)
		fmt.Printf("Status:      %s\n", status)
		fmt.Printf("Extension:   %s\n", p.Ext)
		return nil
	},
}

func addNameFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("date", "", "Document date, YYYY-MM-DD (default: today)")
	f.String("owner", "", "STEVE, ASHLEIGH or JOINT")
	f.String("intent", "", "BIZ, PERSONAL or MIXED")
	f.String("category", "", "Document category, e.g. EXPENSE")
	f.String("source", "", "Issuer of the document")
	f.String("amount", "", "Amount, rendered with two decimals")
	f.String("description", "", "Short description")
	f.String("status", "", "Optional OK or REVIEW marker")
	f.String("ext", "pdf", "File extension")
	for _, name := range []string{"owner", "intent", "category", "source", "description"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

// nameFields are the raw flag values of `name build`.
type nameFields struct {
	date, owner, intent, category, source, amount, description, status, ext string
}

func (n nameFields) parts() (filename.Parts, error) {
	p := filename.Parts{
		Category:    n.category,
		Source:      n.source,
		Description: n.description,
		Ext:         n.ext,
	}

	if n.date == "" {
		now := time.Now()
		p.Date = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		d, err := time.Parse(filename.DateLayout, n.date)
		if err != nil {
			return filename.Parts{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", n.date)
		}
		p.Date = d
	}

	var ok bool
	if p.Owner, ok = filename.ParseOwner(n.owner); !ok {
		return filename.Parts{}, fmt.Errorf("unknown owner %q", n.owner)
	}
	if p.Intent, ok = filename.ParseIntent(n.intent); !ok {
		return filename.Parts{}, fmt.Errorf("unknown intent %q", n.intent)
	}
	if n.status != "" {
		if p.Status, ok = filename.ParseStatus(n.status); !ok {
			return filename.Parts{}, fmt.Errorf("unknown status %q", n.status)
		}
	}
	if n.amount != "" {
		amount, err := decimal.NewFromString(n.amount)
		if err != nil {
			return filename.Parts{}, fmt.Errorf("invalid amount %q: %w", n.amount, err)
		}
		if amount.IsNegative() {
			return filename.Parts{}, fmt.Errorf("amount must not be negative, got %s", n.amount)
		}
		p.Amount = decimal.NewNullDecimal(amount)
	}
	return p, nil
}
