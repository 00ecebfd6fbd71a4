package bot

import (
	"github.com/bwmarrin/discordgo"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/expense-tracker/internal/report"
	"github.com/zombor/expense-tracker/internal/review"
)

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func intOption(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	// Discord delivers numbers as JSON floats
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}

var _ = Describe("Commands", func() {
	It("defines every menu command", func() {
		var names []string
		for _, cmd := range definitions() {
			names = append(names, cmd.Name)
		}
		Expect(names).To(ConsistOf("start", "add", "receipt", "list", "stats", "clear", "report"))
	})

	It("bounds the report period", func() {
		var days *discordgo.ApplicationCommandOption
		for _, cmd := range definitions() {
			if cmd.Name == "report" {
				days = cmd.Options[0]
			}
		}
		Expect(days).NotTo(BeNil())
		Expect(days.Name).To(Equal("days"))
		Expect(*days.MinValue).To(Equal(float64(1)))
		Expect(days.MaxValue).To(Equal(float64(report.MaxDays)))
	})

	DescribeTable("maps slash commands",
		func(data discordgo.ApplicationCommandInteractionData, expected review.Command) {
			cmd, err := commandFromData(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmd).To(Equal(expected))
		},
		Entry("start", discordgo.ApplicationCommandInteractionData{Name: "start"}, review.StartCommand{}),
		Entry("add without entry", discordgo.ApplicationCommandInteractionData{Name: "add"}, review.AddCommand{}),
		Entry("add with entry",
			discordgo.ApplicationCommandInteractionData{
				Name:    "add",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{stringOption("entry", "Coffee 3,50")},
			},
			review.AddCommand{Entry: "Coffee 3,50"}),
		Entry("receipt", discordgo.ApplicationCommandInteractionData{Name: "receipt"}, review.ReceiptCommand{}),
		Entry("list", discordgo.ApplicationCommandInteractionData{Name: "list"}, review.ListCommand{}),
		Entry("stats", discordgo.ApplicationCommandInteractionData{Name: "stats"}, review.StatsCommand{}),
		Entry("clear", discordgo.ApplicationCommandInteractionData{Name: "clear"}, review.ClearCommand{}),
		Entry("report defaults", discordgo.ApplicationCommandInteractionData{Name: "report"},
			review.ReportCommand{Days: 30, Format: review.ReportText}),
		Entry("report with options",
			discordgo.ApplicationCommandInteractionData{
				Name: "report",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					intOption("days", 7),
					stringOption("format", "csv"),
				},
			},
			review.ReportCommand{Days: 7, Format: review.ReportCSV}),
	)

	It("rejects unknown commands", func() {
		_, err := commandFromData(discordgo.ApplicationCommandInteractionData{Name: "dance"})
		Expect(err).To(MatchError(ContainSubstring("dance")))
	})
})
