package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/zombor/expense-tracker/internal/report"
	"github.com/zombor/expense-tracker/internal/review"
)

const defaultReportDays = 30

func definitions() []*discordgo.ApplicationCommand {
	minDays := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "start",
			Description: "Show how to use the expense bot",
		},
		{
			Name:        "add",
			Description: "Add an expense",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "entry",
					Description: "Name and amount, e.g. Coffee 3,50",
				},
			},
		},
		{
			Name:        "receipt",
			Description: "Scan a receipt photo",
		},
		{
			Name:        "list",
			Description: "Show the most recent expenses",
		},
		{
			Name:        "stats",
			Description: "Show the total of all expenses",
		},
		{
			Name:        "clear",
			Description: "Delete all saved expenses",
		},
		{
			Name:        "report",
			Description: "Summarise expenses for a period",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "days",
					Description: "Number of days to include (default 30)",
					MinValue:    &minDays,
					MaxValue:    report.MaxDays,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "format",
					Description: "Chat message or CSV file",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "text", Value: string(review.ReportText)},
						{Name: "csv", Value: string(review.ReportCSV)},
					},
				},
			},
		},
	}
}

// commandFromData maps a slash command invocation to a menu command
func commandFromData(data discordgo.ApplicationCommandInteractionData) (review.Command, error) {
	switch data.Name {
	case "start":
		return review.StartCommand{}, nil
	case "add":
		cmd := review.AddCommand{}
		for _, opt := range data.Options {
			if opt.Name == "entry" {
				cmd.Entry = opt.StringValue()
			}
		}
		return cmd, nil
	case "receipt":
		return review.ReceiptCommand{}, nil
	case "list":
		return review.ListCommand{}, nil
	case "stats":
		return review.StatsCommand{}, nil
	case "clear":
		return review.ClearCommand{}, nil
	case "report":
		cmd := review.ReportCommand{Days: defaultReportDays, Format: review.ReportText}
		for _, opt := range data.Options {
			switch opt.Name {
			case "days":
				cmd.Days = int(opt.IntValue())
			case "format":
				cmd.Format = review.ReportFormat(opt.StringValue())
			}
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("unknown command %q", data.Name)
	}
}
