package scanning

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("OpenAI", func() {
	var (
		server  *ghttp.Server
		scanner *OpenAI
		items   []Item
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOpenAI("test-key", server.URL()+"/v1", "")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		items, err = scanner.ScanReceipt(context.Background(), testPNG(), "image/png")
	})

	When("the model answers with items", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v1/chat/completions"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer test-key"),
				ghttp.RespondWith(http.StatusOK, `{
					"id": "chatcmpl-1",
					"object": "chat.completion",
					"model": "gpt-4o-mini",
					"choices": [{
						"index": 0,
						"message": {"role": "assistant", "content": "[[\"Coffee\", 3.5]]"},
						"finish_reason": "stop"
					}]
				}`, http.Header{"Content-Type": []string{"application/json"}}),
			))
		})

		It("should return the parsed items", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Coffee"))
			Expect(items[0].Price.StringFixed(2)).To(Equal("3.50"))
		})
	})
})

var _ = Describe("NewOpenAI", func() {
	When("no api key is configured", func() {
		It("should refuse to build the scanner", func() {
			_, err := NewOpenAI("", "", "")
			Expect(err).To(HaveOccurred())
		})
	})
})
