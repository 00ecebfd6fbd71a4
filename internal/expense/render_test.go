package expense

import (
	"strings"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Render", func() {
	var (
		items    []LineItem
		currency string
		output   string
	)

	BeforeEach(func() {
		currency = ""
		items = []LineItem{
			{Name: "Bread", Price: decimal.NewFromInt(50)},
			{Name: "Milk", Price: decimal.NewFromInt(90)},
		}
	})

	JustBeforeEach(func() {
		output = Render("Recognized:", items, currency)
	})

	It("should start with the title", func() {
		Expect(output).To(HavePrefix("Recognized:\n"))
	})

	It("should number lines from 1", func() {
		Expect(output).To(ContainSubstring("1. Bread — 50.00\n"))
		Expect(output).To(ContainSubstring("2. Milk — 90.00\n"))
	})

	It("should end with the total", func() {
		Expect(output).To(HaveSuffix("Total: 140.00"))
	})

	When("a currency is configured", func() {
		BeforeEach(func() {
			currency = "₽"
		})

		It("should suffix amounts", func() {
			Expect(output).To(ContainSubstring("1. Bread — 50.00 ₽"))
			Expect(output).To(HaveSuffix("Total: 140.00 ₽"))
		})
	})

	When("the list is empty", func() {
		BeforeEach(func() {
			items = nil
		})

		It("should render the empty indicator", func() {
			Expect(output).To(Equal(EmptyList))
		})
	})

	When("items are removed", func() {
		BeforeEach(func() {
			items = []LineItem{
				{Name: "A", Price: decimal.NewFromInt(1)},
				{Name: "B", Price: decimal.NewFromInt(2)},
				{Name: "C", Price: decimal.NewFromInt(3)},
			}
			items = append(items[:1], items[2:]...)
		})

		It("should keep indices contiguous", func() {
			Expect(output).To(ContainSubstring("1. A"))
			Expect(output).To(ContainSubstring("2. C"))
			Expect(strings.Count(output, " — ")).To(Equal(2))
		})
	})
})
