package expense

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// describeDB runs the same behaviour checks against every DB backend.
func describeDB(name string, open func() DB) bool {
	return Describe(name, func() {
		var (
			ctx context.Context
			db  DB
		)

		BeforeEach(func() {
			ctx = context.Background()
			db = open()
		})

		AfterEach(func() {
			if db != nil {
				Expect(db.DeleteAll(ctx)).To(Succeed())
				db.Close()
			}
		})

		Describe("InsertMany", func() {
			var (
				items []LineItem
				n     int
				err   error
			)

			BeforeEach(func() {
				items = []LineItem{
					{Name: "Bread", Price: decimal.RequireFromString("50")},
					{Name: "Milk", Price: decimal.RequireFromString("89.90")},
				}
			})

			JustBeforeEach(func() {
				n, err = db.InsertMany(ctx, items)
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should report the number of rows written", func() {
				Expect(n).To(Equal(2))
			})

			It("should store names and prices", func() {
				expenses, err := db.Recent(ctx, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(HaveLen(2))
				Expect(expenses[0].Name).To(Equal("Milk"))
				Expect(expenses[0].Price.StringFixed(2)).To(Equal("89.90"))
				Expect(expenses[1].Name).To(Equal("Bread"))
			})

			It("should stamp the insertion time", func() {
				expenses, err := db.Recent(ctx, 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses[0].CreatedAt).To(BeTemporally("~", time.Now(), time.Minute))
			})

			When("no items are given", func() {
				BeforeEach(func() {
					items = nil
				})

				It("should write nothing", func() {
					Expect(err).NotTo(HaveOccurred())
					Expect(n).To(Equal(0))
				})
			})
		})

		Describe("Recent", func() {
			BeforeEach(func() {
				for _, name := range []string{"first", "second", "third"} {
					_, err := db.InsertMany(ctx, []LineItem{{Name: name, Price: decimal.NewFromInt(1)}})
					Expect(err).NotTo(HaveOccurred())
				}
			})

			It("should return newest first up to the limit", func() {
				expenses, err := db.Recent(ctx, 2)
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(HaveLen(2))
				Expect(expenses[0].Name).To(Equal("third"))
				Expect(expenses[1].Name).To(Equal("second"))
			})

			It("should return nothing for a non-positive limit", func() {
				expenses, err := db.Recent(ctx, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(BeEmpty())
			})
		})

		Describe("Since", func() {
			BeforeEach(func() {
				_, err := db.InsertMany(ctx, []LineItem{{Name: "Tea", Price: decimal.NewFromInt(3)}})
				Expect(err).NotTo(HaveOccurred())
			})

			It("should include rows inside the window", func() {
				expenses, err := db.Since(ctx, time.Now().Add(-time.Hour))
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(HaveLen(1))
				Expect(expenses[0].Name).To(Equal("Tea"))
			})

			It("should exclude rows before the window", func() {
				expenses, err := db.Since(ctx, time.Now().Add(time.Hour))
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(BeEmpty())
			})
		})

		Describe("Sum", func() {
			It("should be zero when empty", func() {
				total, err := db.Sum(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(total.IsZero()).To(BeTrue())
			})

			It("should add every price", func() {
				_, err := db.InsertMany(ctx, []LineItem{
					{Name: "A", Price: decimal.RequireFromString("10.10")},
					{Name: "B", Price: decimal.RequireFromString("0.90")},
				})
				Expect(err).NotTo(HaveOccurred())

				total, err := db.Sum(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(total.StringFixed(2)).To(Equal("11.00"))
			})
		})

		Describe("DeleteAll", func() {
			It("should remove every row", func() {
				_, err := db.InsertMany(ctx, []LineItem{{Name: "A", Price: decimal.NewFromInt(1)}})
				Expect(err).NotTo(HaveOccurred())

				Expect(db.DeleteAll(ctx)).To(Succeed())

				expenses, err := db.Recent(ctx, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(expenses).To(BeEmpty())
			})
		})
	})
}

var _ = describeDB("BoltDB", func() DB {
	db, err := NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
	Expect(err).NotTo(HaveOccurred())
	return db
})

var _ = describeDB("SQLiteDB", func() DB {
	db, err := NewSQLiteDB(filepath.Join(GinkgoT().TempDir(), "data", "test.db"))
	Expect(err).NotTo(HaveOccurred())
	return db
})

var _ = describeDB("PostgresDB", func() DB {
	url := os.Getenv("EXPENSE_TRACKER_TEST_DATABASE_URL")
	if url == "" {
		Skip("EXPENSE_TRACKER_TEST_DATABASE_URL not set")
	}
	db, err := NewPostgresDB(context.Background(), url)
	Expect(err).NotTo(HaveOccurred())
	Expect(db.DeleteAll(context.Background())).To(Succeed())
	return db
})

var _ = Describe("SQLiteDB price bounds", func() {
	var (
		ctx context.Context
		db  *SQLiteDB
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		db, err = NewSQLiteDB(filepath.Join(GinkgoT().TempDir(), "bounds.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)
	})

	It("should refuse a price that does not fit in cents", func() {
		_, err := db.InsertMany(ctx, []LineItem{
			{Name: "Bread", Price: decimal.NewFromInt(50)},
			{Name: "Coffee", Price: decimal.RequireFromString("100000000000000000000")},
		})
		Expect(err).To(MatchError(ContainSubstring("does not fit in cents")))

		expenses, err := db.Recent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(expenses).To(BeEmpty())
	})
})

var _ = Describe("toCents", func() {
	It("should convert the largest accepted price exactly", func() {
		cents, err := toCents(MaxPrice)
		Expect(err).NotTo(HaveOccurred())
		Expect(fromCents(cents).Equal(MaxPrice)).To(BeTrue())
	})

	It("should fail past the int64 range", func() {
		_, err := toCents(decimal.RequireFromString("92233720368547758.08"))
		Expect(err).To(HaveOccurred())
	})
})
