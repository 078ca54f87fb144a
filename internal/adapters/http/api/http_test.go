package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/okian/mlscore/internal/adapters/http/api"
	service "github.com/okian/mlscore/internal/app"
	"github.com/okian/mlscore/internal/domain/types"
	"github.com/okian/mlscore/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// stubDependencies lets each test swap the scoring behaviour.
type stubDependencies struct {
	score func(ctx context.Context, features []float64) ([]float64, error)
	stats map[string]interface{}
}

func (s *stubDependencies) Score(ctx context.Context, features []float64) ([]float64, error) {
	if s.score == nil {
		return features, nil
	}
	return s.score(ctx, features)
}

func (s *stubDependencies) HostAddress() string { return "10.0.0.7" }

func (s *stubDependencies) GetStats() map[string]interface{} { return s.stats }

func newMux(deps api.Dependencies, opts ...api.ServerOption) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorOf(w *httptest.ResponseRecorder) string {
	var resp types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		return "undecodable: " + w.Body.String()
	}
	return resp.Error
}

func scoreOf(w *httptest.ResponseRecorder) []float64 {
	var resp types.ScoreResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		return nil
	}
	return resp.Score
}

func TestServer_Register(t *testing.T) {
	Convey("Given a nil mux", t, func() {
		server := api.NewServer(&stubDependencies{})

		Convey("Then registering should panic", func() {
			So(func() { server.Register(context.Background(), nil) }, ShouldPanic)
		})
	})
}

func TestScoreEndpoint(t *testing.T) {
	Convey("Given a server backed by the identity model", t, func() {
		mux := newMux(&stubDependencies{})

		Convey("When posting a feature vector", func() {
			w := do(mux, http.MethodPost, "/score", `{"X":[1,2,3]}`)

			Convey("Then the score should echo the vector", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"score":[1,2,3]}`)
			})
		})

		Convey("When posting an empty vector", func() {
			w := do(mux, http.MethodPost, "/score", `{"X":[]}`)

			Convey("Then the score should be an empty array, not null", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"score":[]}`)
			})
		})

		Convey("When posting extreme but finite values", func() {
			w := do(mux, http.MethodPost, "/score", `{"X":[-0.5,1e300,-1e-300,0]}`)

			Convey("Then they should round-trip unchanged", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(scoreOf(w), ShouldResemble, []float64{-0.5, 1e300, -1e-300, 0})
			})
		})

		Convey("When posting an empty object", func() {
			w := do(mux, http.MethodPost, "/score", `{}`)

			Convey("Then the exact missing-field error should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"error":"missing field X"}`)
			})
		})

		Convey("When posting malformed JSON", func() {
			w := do(mux, http.MethodPost, "/score", `{"X":[1,2`)

			Convey("Then a 400 with a parse error should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorOf(w), ShouldStartWith, "invalid JSON body: ")
			})
		})

		Convey("When posting a non-numeric element", func() {
			w := do(mux, http.MethodPost, "/score", `{"X":[1,"two"]}`)

			Convey("Then the offending index should be named", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorOf(w), ShouldEqual, "field X[1] must be a number")
			})
		})

		Convey("When posting without a body", func() {
			w := do(mux, http.MethodPost, "/score", "")

			Convey("Then a 400 should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorOf(w), ShouldEqual, "missing request body")
			})
		})

		Convey("When using GET", func() {
			w := do(mux, http.MethodGet, "/score", "")

			Convey("Then 405 with an Allow header should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, http.MethodPost)
				So(errorOf(w), ShouldEqual, "method not allowed")
			})
		})
	})

	Convey("Given a server with small request limits", t, func() {
		mux := newMux(&stubDependencies{}, api.WithMaxBodyBytes(16), api.WithMaxFeatures(2))

		Convey("When the body exceeds the byte limit", func() {
			w := do(mux, http.MethodPost, "/score", `{"X":[1,2,3,4,5,6,7,8,9]}`)

			Convey("Then 413 should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(errorOf(w), ShouldEqual, "request body exceeds 16 bytes")
			})
		})

		Convey("When the vector exceeds the element limit", func() {
			w := do(mux, http.MethodPost, "/score", `{"X":[1,2,3]}`)

			Convey("Then 400 should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorOf(w), ShouldEqual, "field X exceeds 2 elements")
			})
		})
	})
}

func TestScoreEndpoint_Failures(t *testing.T) {
	Convey("Given a scorer that fails", t, func() {
		mux := newMux(&stubDependencies{score: func(context.Context, []float64) ([]float64, error) {
			return nil, errors.New("weights file corrupt")
		}})

		Convey("When scoring", func() {
			w := do(mux, http.MethodPost, "/score", `{"X":[1]}`)

			Convey("Then a generic 500 should hide the cause", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorOf(w), ShouldEqual, "internal server error")
				So(w.Body.String(), ShouldNotContainSubstring, "weights")
			})
		})
	})

	Convey("Given a scorer that panics", t, func() {
		mux := newMux(&stubDependencies{score: func(context.Context, []float64) ([]float64, error) {
			panic("boom")
		}})

		Convey("When scoring", func() {
			w := do(mux, http.MethodPost, "/score", `{"X":[1]}`)

			Convey("Then the panic should become a 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorOf(w), ShouldEqual, "internal server error")
			})

			Convey("And the server should keep serving", func() {
				So(do(mux, http.MethodGet, "/health", "").Code, ShouldEqual, http.StatusOK)
			})
		})
	})

	Convey("Given a client that goes away mid-request", t, func() {
		mux := newMux(&stubDependencies{score: func(ctx context.Context, _ []float64) ([]float64, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}})

		Convey("When scoring with a cancelled context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			req := httptest.NewRequest(http.MethodPost, "/score", strings.NewReader(`{"X":[1]}`)).WithContext(ctx)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then 503 request cancelled should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(errorOf(w), ShouldEqual, "request cancelled")
			})
		})
	})
}

func TestScoreEndpoint_Concurrency(t *testing.T) {
	Convey("Given a started scoring service", t, func() {
		svc := service.New(service.WithHostResolver(func() string { return "10.0.0.9" }))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		mux := newMux(svc)

		Convey("When many clients score distinct vectors at once", func() {
			const clients = 32
			results := make([][]float64, clients)
			var wg sync.WaitGroup
			for i := 0; i < clients; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					w := do(mux, http.MethodPost, "/score", fmt.Sprintf(`{"X":[%d,%d,%d]}`, i, i+1, i+2))
					results[i] = scoreOf(w)
				}(i)
			}
			wg.Wait()

			Convey("Then every client should get its own vector back", func() {
				for i := 0; i < clients; i++ {
					So(results[i], ShouldResemble, []float64{float64(i), float64(i + 1), float64(i + 2)})
				}
			})
		})
	})
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given a server whose scorer always fails", t, func() {
		mux := newMux(&stubDependencies{score: func(context.Context, []float64) ([]float64, error) {
			return nil, errors.New("down")
		}})

		Convey("When checking health", func() {
			w := do(mux, http.MethodGet, "/health", "")

			Convey("Then it should still report UP", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, `{"status":"UP"}`)
			})
		})

		Convey("When checking the alias and HEAD", func() {
			So(do(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			So(do(mux, http.MethodHead, "/health", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("When posting to health", func() {
			w := do(mux, http.MethodPost, "/health", "")

			Convey("Then 405 should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, "GET, HEAD")
			})
		})
	})
}

func TestAuxiliaryEndpoints(t *testing.T) {
	Convey("Given a server with stats", t, func() {
		mux := newMux(&stubDependencies{stats: map[string]interface{}{"model": "identity", "requestsScored": 4}})

		Convey("When requesting the greeting", func() {
			w := do(mux, http.MethodGet, "/test_api", "")

			Convey("Then caller and instance should be named", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp types.GreetingResponse
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Message, ShouldEqual, "Hello 192.0.2.1, you've reached 10.0.0.7")
			})
		})

		Convey("When requesting stats", func() {
			w := do(mux, http.MethodGet, "/stats", "")

			Convey("Then the provider's stats should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var stats map[string]interface{}
				So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
				So(stats["model"], ShouldEqual, "identity")
				So(stats["requestsScored"], ShouldEqual, float64(4))
			})
		})

		Convey("When requesting an unknown route", func() {
			w := do(mux, http.MethodGet, "/predict", "")

			Convey("Then a JSON 404 should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorOf(w), ShouldEqual, "not found")
			})
		})

		Convey("When scraping metrics after a scoring call", func() {
			do(mux, http.MethodPost, "/score", `{"X":[1]}`)
			w := do(mux, http.MethodGet, "/metrics", "")

			Convey("Then the HTTP families should be exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "mlscore_api_http_requests_total")
				So(w.Body.String(), ShouldContainSubstring, "mlscore_api_feature_vector_length")
			})
		})
	})

	Convey("Given a server with the metrics endpoint disabled", t, func() {
		mux := newMux(&stubDependencies{}, api.WithMetricsEndpoint(false))

		Convey("Then /metrics should not be routed", func() {
			So(do(mux, http.MethodGet, "/metrics", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRequestIDPropagation(t *testing.T) {
	Convey("Given a server", t, func() {
		mux := newMux(&stubDependencies{})

		Convey("When the caller supplies a request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("X-Request-ID", "trace-42")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it should be echoed", func() {
				So(w.Header().Get("X-Request-ID"), ShouldEqual, "trace-42")
			})
		})

		Convey("When no request id is supplied", func() {
			w := do(mux, http.MethodGet, "/health", "")

			Convey("Then one should be generated", func() {
				So(len(w.Header().Get("X-Request-ID")), ShouldEqual, 36)
			})
		})
	})
}
