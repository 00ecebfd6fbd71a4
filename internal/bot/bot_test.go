package bot

import (
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/onsi/gomega/ghttp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/expense-tracker/internal/review"
)

var _ = Describe("Bot", func() {
	var (
		b          *Bot
		dispatcher *mockDispatcher
		server     *ghttp.Server
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		dispatcher = &mockDispatcher{}
		b = newBot(&mockMessenger{})
		b.SetDispatcher(dispatcher)
	})

	AfterEach(func() {
		server.Close()
	})

	message := func(content string, attachments ...*discordgo.MessageAttachment) *discordgo.MessageCreate {
		return &discordgo.MessageCreate{Message: &discordgo.Message{
			ChannelID:   "chan-1",
			Content:     content,
			Author:      &discordgo.User{ID: "42"},
			Attachments: attachments,
		}}
	}

	It("dispatches text and remembers the channel", func() {
		b.onMessageCreate(nil, message("  Coffee 3,50 "))
		b.queue.wait()

		Expect(dispatcher.events).To(Equal([]dispatched{
			{User: "42", Event: review.TextReceived{Text: "Coffee 3,50"}},
		}))
		channelID, err := b.channelFor("42")
		Expect(err).NotTo(HaveOccurred())
		Expect(channelID).To(Equal("chan-1"))
	})

	It("ignores other bots", func() {
		m := message("hello")
		m.Author.Bot = true
		b.onMessageCreate(nil, m)
		b.queue.wait()

		Expect(dispatcher.events).To(BeEmpty())
	})

	It("ignores empty messages", func() {
		b.onMessageCreate(nil, message("   "))
		b.queue.wait()
		Expect(dispatcher.events).To(BeEmpty())
	})

	When("a receipt image is attached", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/attachments/receipt.jpg"),
				ghttp.RespondWith(http.StatusOK, "jpeg bytes"),
			))
		})

		It("downloads it and submits a photo", func() {
			b.onMessageCreate(nil, message("", &discordgo.MessageAttachment{
				URL:         server.URL() + "/attachments/receipt.jpg",
				Filename:    "receipt.jpg",
				ContentType: "image/jpeg",
			}))
			b.queue.wait()

			Expect(dispatcher.events).To(HaveLen(1))
			Expect(dispatcher.events[0].Event).To(Equal(review.PhotoSubmitted{
				Image:       []byte("jpeg bytes"),
				ContentType: "image/jpeg",
			}))
		})
	})

	When("the attachment cannot be downloaded", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, ""))
		})

		It("dispatches nothing", func() {
			b.onMessageCreate(nil, message("", &discordgo.MessageAttachment{
				URL:         server.URL() + "/gone.png",
				ContentType: "image/png",
			}))
			b.queue.wait()

			Expect(dispatcher.events).To(BeEmpty())
		})
	})

	It("treats non-image attachments as text", func() {
		b.onMessageCreate(nil, message("notes", &discordgo.MessageAttachment{ContentType: "text/plain"}))
		b.queue.wait()

		Expect(dispatcher.events).To(HaveLen(1))
		Expect(dispatcher.events[0].Event).To(Equal(review.TextReceived{Text: "notes"}))
	})

	When("a photo is followed by text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/attachments/slow.png"),
				func(w http.ResponseWriter, r *http.Request) {
					time.Sleep(50 * time.Millisecond)
				},
				ghttp.RespondWith(http.StatusOK, "png bytes"),
			))
		})

		It("dispatches them in arrival order", func() {
			b.onMessageCreate(nil, message("", &discordgo.MessageAttachment{
				URL:         server.URL() + "/attachments/slow.png",
				ContentType: "image/png",
			}))
			b.onMessageCreate(nil, message("2"))
			b.queue.wait()

			Expect(dispatcher.events).To(HaveLen(2))
			Expect(dispatcher.events[0].Event).To(BeAssignableToTypeOf(review.PhotoSubmitted{}))
			Expect(dispatcher.events[1].Event).To(Equal(review.TextReceived{Text: "2"}))
		})
	})

	DescribeTable("finds the interacting user",
		func(i *discordgo.Interaction, expected review.UserID) {
			Expect(interactionUser(i)).To(Equal(expected))
		},
		Entry("guild member", &discordgo.Interaction{Member: &discordgo.Member{User: &discordgo.User{ID: "1"}}}, review.UserID("1")),
		Entry("direct message", &discordgo.Interaction{User: &discordgo.User{ID: "2"}}, review.UserID("2")),
		Entry("nobody", &discordgo.Interaction{}, review.UserID("")),
	)
})
