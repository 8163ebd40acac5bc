package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/apresai/robodebate/internal/debate"
	"github.com/apresai/robodebate/internal/httpapi"
	"github.com/apresai/robodebate/internal/llm"
	"github.com/apresai/robodebate/internal/market"
)

type sourceFunc func(ctx context.Context) ([]market.Proposal, error)

func (f sourceFunc) Fetch(ctx context.Context) ([]market.Proposal, error) { return f(ctx) }

const quickJSON = `[{"agentId":"agent-a","text":"1"},{"agentId":"agent-b","text":"2"},{"agentId":"agent-a","text":"3"},` +
	`{"agentId":"agent-b","text":"4"},{"agentId":"agent-a","text":"5"},{"agentId":"agent-b","text":"6"}]`

func isTriage(req llm.Request) bool {
	return strings.Contains(req.Messages[0].Content, "Reply with ONLY one word")
}

func countEvents(body, event string) int {
	return strings.Count(body, "event: "+event+"\n")
}

var _ = Describe("Server", func() {
	var (
		cfg    httpapi.Config
		client llm.ClientFunc
		router http.Handler
		now    time.Time
	)

	do := func(method, path string, body []byte) *httptest.ResponseRecorder {
		var req *http.Request
		if body != nil {
			req = httptest.NewRequest(method, path, bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decodeError := func(w *httptest.ResponseRecorder) string {
		var resp map[string]string
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp["error"]
	}

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		now = time.UnixMilli(1_700_000_000_000)
		client = func(_ context.Context, req llm.Request) (string, error) {
			if isTriage(req) {
				return "roast", nil
			}
			if req.Messages[0].Role == llm.RoleSystem && strings.Contains(req.Messages[0].Content, "JSON array") {
				return quickJSON, nil
			}
			return "beep", nil
		}
		cfg = httpapi.Config{
			Source: sourceFunc(func(context.Context) ([]market.Proposal, error) {
				return market.StaticProposals(), nil
			}),
			Turns: 4,
			Now:   func() time.Time { return now },
		}
	})

	JustBeforeEach(func() {
		if client != nil {
			cfg.Client = client
		}
		router = httpapi.NewServer(cfg).Handler()
	})

	Describe("GET /health", func() {
		It("reports the node as up", func() {
			w := do(http.MethodGet, "/health", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"status":"ok","system":"Proper Prediction Market Node"}`))
		})

		It("rejects other methods with 405", func() {
			w := do(http.MethodDelete, "/health", nil)
			Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(decodeError(w)).To(Equal("Method not allowed"))
		})
	})

	Describe("GET /trending", func() {
		It("returns proposals with CDN cache headers", func() {
			w := do(http.MethodGet, "/trending", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Cache-Control")).To(Equal("s-maxage=21600, max-age=60, stale-while-revalidate=3600"))

			var props []market.Proposal
			Expect(json.Unmarshal(w.Body.Bytes(), &props)).To(Succeed())
			Expect(props).To(HaveLen(3))
			Expect(props[0].ID).To(Equal("fallback-1"))
		})

		Context("when the source fails", func() {
			BeforeEach(func() {
				cfg.Source = sourceFunc(func(context.Context) ([]market.Proposal, error) {
					return nil, errors.New("down")
				})
			})

			It("returns 502", func() {
				w := do(http.MethodGet, "/trending", nil)
				Expect(w.Code).To(Equal(http.StatusBadGateway))
			})
		})
	})

	Describe("POST /debate", func() {
		It("returns six timestamped messages", func() {
			w := do(http.MethodPost, "/debate", []byte(`{"proposalTitle":"Will BTC hit $150k?"}`))
			Expect(w.Code).To(Equal(http.StatusOK))

			var msgs []debate.Message
			Expect(json.Unmarshal(w.Body.Bytes(), &msgs)).To(Succeed())
			Expect(msgs).To(HaveLen(6))
			Expect(msgs[0].ID).To(Equal("msg-1700000000000-0"))
			Expect(msgs[1].Timestamp).To(Equal(int64(1_700_000_003_000)))
		})

		It("requires a title", func() {
			w := do(http.MethodPost, "/debate", []byte(`{"proposalDescription":"no title"}`))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(w)).To(Equal("proposalTitle is required"))
		})

		It("treats malformed JSON as a missing title", func() {
			w := do(http.MethodPost, "/debate", []byte(`{not json`))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeError(w)).To(Equal("proposalTitle is required"))
		})

		It("rejects GET with 405", func() {
			w := do(http.MethodGet, "/debate", nil)
			Expect(w.Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(decodeError(w)).To(Equal("Method not allowed"))
		})

		Context("without a provider key", func() {
			BeforeEach(func() { client = nil })

			It("returns 500 naming the missing key", func() {
				w := do(http.MethodPost, "/debate", []byte(`{"proposalTitle":"x"}`))
				Expect(w.Code).To(Equal(http.StatusInternalServerError))
				Expect(decodeError(w)).To(Equal("OPENROUTER_API_KEY not configured"))
			})
		})

		Context("when the model misbehaves", func() {
			BeforeEach(func() {
				client = func(context.Context, llm.Request) (string, error) {
					return "LOGIC-01: I refuse to emit JSON", nil
				}
			})

			It("returns the generic failure", func() {
				w := do(http.MethodPost, "/debate", []byte(`{"proposalTitle":"x"}`))
				Expect(w.Code).To(Equal(http.StatusInternalServerError))
				Expect(decodeError(w)).To(Equal("Failed to generate debate. Please try again."))
			})
		})
	})

	Describe("GET /debate/stream", func() {
		It("streams mode, every turn, then done", func() {
			w := do(http.MethodGet, "/debate/stream?title=Will+it+snow&mode=debate", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(Equal("text/event-stream"))

			body := w.Body.String()
			Expect(body).To(HavePrefix("event: mode\ndata: {\"mode\":\"debate\"}\n\n"))
			Expect(countEvents(body, "message")).To(Equal(4))
			Expect(countEvents(body, "done")).To(Equal(1))
			Expect(body).To(ContainSubstring(`"agentId":"agent-b"`))
		})

		It("triages when no mode is given", func() {
			w := do(http.MethodGet, "/debate/stream?title=Will+the+sun+rise", nil)
			Expect(w.Body.String()).To(HavePrefix("event: mode\ndata: {\"mode\":\"roast\"}\n\n"))
		})

		It("validates its parameters", func() {
			Expect(do(http.MethodGet, "/debate/stream", nil).Code).To(Equal(http.StatusBadRequest))
			Expect(do(http.MethodGet, "/debate/stream?title=x&mode=duel", nil).Code).To(Equal(http.StatusBadRequest))
		})

		Context("when a turn fails", func() {
			BeforeEach(func() {
				var calls atomic.Int32
				client = func(context.Context, llm.Request) (string, error) {
					if calls.Add(1) == 2 {
						return "", errors.New("upstream 500")
					}
					return "beep", nil
				}
			})

			It("emits an error event and no done event", func() {
				body := do(http.MethodGet, "/debate/stream?title=x&mode=roast", nil).Body.String()
				Expect(countEvents(body, "message")).To(Equal(1))
				Expect(countEvents(body, "error")).To(Equal(1))
				Expect(countEvents(body, "done")).To(Equal(0))
			})
		})
	})

	Describe("GET /data/debates.json", func() {
		It("returns 404 before any snapshot exists", func() {
			cfg.SnapshotPath = filepath.Join(GinkgoT().TempDir(), "missing.json")
			router = httpapi.NewServer(cfg).Handler()

			Expect(do(http.MethodGet, "/data/debates.json", nil).Code).To(Equal(http.StatusNotFound))
		})

		It("serves the written snapshot", func() {
			path := filepath.Join(GinkgoT().TempDir(), "debates.json")
			Expect(os.WriteFile(path, []byte(`{"generatedAt":"x","proposals":[]}`), 0o644)).To(Succeed())
			cfg.SnapshotPath = path
			router = httpapi.NewServer(cfg).Handler()

			w := do(http.MethodGet, "/data/debates.json", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"generatedAt":"x","proposals":[]}`))
			Expect(w.Header().Get("Cache-Control")).To(Equal("public, max-age=60"))
		})
	})

	Describe("rate limiting", func() {
		BeforeEach(func() { cfg.RateLimitPerMinute = 2 })

		It("answers 429 with Retry-After once the budget is spent", func() {
			for range 2 {
				Expect(do(http.MethodPost, "/debate", []byte(`{}`)).Code).To(Equal(http.StatusBadRequest))
			}
			w := do(http.MethodPost, "/debate", []byte(`{}`))
			Expect(w.Code).To(Equal(http.StatusTooManyRequests))
			Expect(w.Header().Get("Retry-After")).To(Equal("30"))
		})

		It("leaves non-LLM routes alone", func() {
			for range 5 {
				Expect(do(http.MethodGet, "/health", nil).Code).To(Equal(http.StatusOK))
			}
		})
	})
})
