package review_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/metrics"
	"github.com/zombor/expense-tracker/internal/review"
	"github.com/zombor/expense-tracker/internal/scanning"
	"github.com/zombor/expense-tracker/internal/server"
)

// fakeScanner returns fixed items
type fakeScanner struct {
	items []scanning.Item
}

func (f *fakeScanner) ScanReceipt(ctx context.Context, imageData []byte, contentType string) ([]scanning.Item, error) {
	return f.items, nil
}

func (f *fakeScanner) Close() error {
	return nil
}

// chatLog is a presenter that keeps the conversation as plain text
type chatLog struct {
	mu    sync.Mutex
	n     int
	lines []string
}

func (c *chatLog) add(text string) (review.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	c.lines = append(c.lines, text)
	return review.Handle(fmt.Sprint(c.n)), nil
}

func (c *chatLog) ShowList(ctx context.Context, user review.UserID, text string) (review.Handle, error) {
	return c.add(text)
}

func (c *chatLog) Prompt(ctx context.Context, user review.UserID, text string) (review.Handle, error) {
	return c.add(text)
}

func (c *chatLog) Notify(ctx context.Context, user review.UserID, text string) (review.Handle, error) {
	return c.add(text)
}

func (c *chatLog) Confirm(ctx context.Context, user review.UserID, text string) (review.Handle, error) {
	return c.add(text)
}

func (c *chatLog) SendFile(ctx context.Context, user review.UserID, name string, data []byte, caption string) error {
	_, err := c.add(caption)
	return err
}

func (c *chatLog) Remove(ctx context.Context, user review.UserID, h review.Handle) error {
	return nil
}

func (c *chatLog) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[len(c.lines)-1]
}

// counterValue sums every series of a counter family
func counterValue(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

var _ = Describe("Integration", func() {
	stores := map[string]func(dir string) (expense.DB, error){
		"bolt": func(dir string) (expense.DB, error) {
			return expense.NewBoltDB(filepath.Join(dir, "expenses.db"))
		},
		"sqlite": func(dir string) (expense.DB, error) {
			return expense.NewSQLiteDB(filepath.Join(dir, "data", "expenses.sqlite"))
		},
	}

	for name, open := range stores {
		When("using the "+name+" store", func() {
			var (
				ctx      context.Context
				db       expense.DB
				chat     *chatLog
				registry *prometheus.Registry
				service  *review.Service
				ghServer *ghttp.Server
				user     review.UserID
			)

			BeforeEach(func() {
				var err error
				ctx = context.Background()
				db, err = open(GinkgoT().TempDir())
				Expect(err).NotTo(HaveOccurred())

				chat = &chatLog{}
				registry = prometheus.NewRegistry()
				service = review.NewService(db, &fakeScanner{items: []scanning.Item{
					{Name: "Bread", Price: decimal.NewFromInt(50)},
					{Name: "Milk", Price: decimal.NewFromInt(90)},
				}}, chat, review.Options{Metrics: metrics.New(registry)})

				ghServer = ghttp.NewServer()
				ghServer.AppendHandlers(server.New(db, registry, server.BasicAuth{}).ServeHTTP)
				user = "alice"
			})

			AfterEach(func() {
				ghServer.Close()
				Expect(db.Close()).To(Succeed())
			})

			dispatch := func(ev review.Event) {
				ExpectWithOffset(1, service.Dispatch(ctx, user, ev)).To(Succeed())
			}

			It("reviews a receipt, saves what is left and serves it over the API", func() {
				dispatch(review.PhotoSubmitted{Image: []byte("jpeg"), ContentType: "image/jpeg"})
				Expect(chat.last()).To(ContainSubstring("Total: 140.00"))

				dispatch(review.DeleteRequested{})
				dispatch(review.TextReceived{Text: "1"})
				Expect(chat.last()).To(ContainSubstring("1. Milk — 90.00"))
				Expect(chat.last()).To(ContainSubstring("Total: 90.00"))

				dispatch(review.SaveRequested{})
				Expect(chat.last()).To(Equal("Saved 1 items."))
				_, staged := service.Staged(user)
				Expect(staged).To(BeFalse())

				resp, err := http.Get(ghServer.URL() + "/api/expenses")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()

				var saved []expense.Expense
				Expect(json.NewDecoder(resp.Body).Decode(&saved)).To(Succeed())
				Expect(saved).To(HaveLen(1))
				Expect(saved[0].Name).To(Equal("Milk"))
				Expect(saved[0].Price.StringFixed(2)).To(Equal("90.00"))

				Expect(counterValue(registry, "expense_bot_items_committed_total")).To(Equal(1.0))
			})

			It("quick adds and reports", func() {
				dispatch(review.TextReceived{Text: "Coffee 3,50"})
				dispatch(review.MenuInterrupt{Command: review.StatsCommand{}})
				Expect(chat.last()).To(Equal("Total spent: 3.50"))

				dispatch(review.MenuInterrupt{Command: review.ReportCommand{Days: 1, Format: review.ReportText}})
				Expect(chat.last()).To(ContainSubstring("Coffee — 3.50"))
			})
		})
	}
})
