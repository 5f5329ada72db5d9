package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/rally/internal/adapters/http/api"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// stubDeps is a canned implementation of the handler dependency bundle.
type stubDeps struct {
	result      model.Result
	match       model.Match
	matches     []model.Match
	entries     []model.LeaderboardEntry
	advanced    int
	err         error
	lastEvent   model.ScoreEvent
	lastLimit   int
	lastSetDone bool
}

func (s *stubDeps) ApplyEvent(_ context.Context, ev model.ScoreEvent) (model.Result, error) {
	s.lastEvent = ev
	return s.result, s.err
}

func (s *stubDeps) CreateMatch(_ context.Context, m model.Match) (model.Match, error) {
	if s.err != nil {
		return model.Match{}, s.err
	}
	return m, nil
}

func (s *stubDeps) GetMatch(context.Context, model.MatchKey) (model.Match, error) {
	return s.match, s.err
}

func (s *stubDeps) ListMatches(context.Context, string) ([]model.Match, error) {
	return s.matches, s.err
}

func (s *stubDeps) SetDone(_ context.Context, _ model.MatchKey, done bool) (model.Match, error) {
	s.lastSetDone = done
	return s.match, s.err
}

func (s *stubDeps) AdvanceBracket(context.Context, string) (int, error) {
	return s.advanced, s.err
}

func (s *stubDeps) Leaderboard(_ context.Context, limit int) ([]model.LeaderboardEntry, error) {
	s.lastLimit = limit
	return s.entries, s.err
}

type stubStats struct{}

func (stubStats) GetStats(context.Context) any {
	return map[string]any{"started": true}
}

func newTestServer(deps *stubDeps, opts ...api.ServerOption) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, stubStats{}, opts...).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func postJSON(url string, body any) (*http.Response, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return http.Post(url, "application/json", bytes.NewReader(buf)) //nolint:gosec
}

func eventBody(id string) map[string]any {
	return map[string]any{
		"client_event_id": id,
		"scope":           "court-1",
		"index":           0,
		"side":            "A",
		"delta":           1,
		"source_id":       "dev-1",
		"timestamp":       time.Now().Format(time.RFC3339Nano),
	}
}

func TestPostEvent(t *testing.T) {
	Convey("Given the events endpoint", t, func() {
		deps := &stubDeps{result: model.Result{
			EventID: "e1",
			Outcome: model.OutcomeApplied,
			Score:   1,
			Version: 1,
		}}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When a valid event is posted", func() {
			resp, err := postJSON(srv.URL+"/events", eventBody("e1"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the definitive result comes back with 200", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)

				var res model.Result
				So(json.NewDecoder(resp.Body).Decode(&res), ShouldBeNil)
				So(res.Outcome, ShouldEqual, model.OutcomeApplied)
				So(res.Score, ShouldEqual, 1)
				So(deps.lastEvent.ClientEventID, ShouldEqual, "e1")
				So(deps.lastEvent.Side, ShouldEqual, model.SideA)
			})
		})

		Convey("When required fields are missing", func() {
			body := eventBody("e1")
			delete(body, "source_id")
			resp, err := postJSON(srv.URL+"/events", body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the request is rejected with 400", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the delta is out of range", func() {
			body := eventBody("e1")
			body["delta"] = 5
			resp, err := postJSON(srv.URL+"/events", body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the timestamp is malformed", func() {
			body := eventBody("e1")
			body["timestamp"] = "yesterday"
			resp, err := postJSON(srv.URL+"/events", body)
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body is not JSON", func() {
			resp, err := http.Post(srv.URL+"/events", "application/json", bytes.NewBufferString("{"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the method is not POST", func() {
			resp, err := http.Get(srv.URL + "/events")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestMatchEndpoints(t *testing.T) {
	Convey("Given the match endpoints", t, func() {
		deps := &stubDeps{
			match: model.Match{
				Key:    model.MatchKey{Scope: "cup", Index: 0},
				ScoreA: 11,
				ScoreB: 7,
				Done:   true,
			},
			matches: []model.Match{
				{Key: model.MatchKey{Scope: "cup", Index: 0}},
				{Key: model.MatchKey{Scope: "cup", Index: 1}},
			},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When creating a match", func() {
			resp, err := postJSON(srv.URL+"/matches", map[string]any{
				"scope":  "cup",
				"index":  0,
				"side_a": []string{"ana"},
				"side_b": []string{"bo"},
			})
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it returns 201 with the created match", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)

				var m model.Match
				So(json.NewDecoder(resp.Body).Decode(&m), ShouldBeNil)
				So(m.Key.Scope, ShouldEqual, "cup")
				So(m.SideA.Players, ShouldResemble, []string{"ana"})
			})
		})

		Convey("When creating a match with no scope", func() {
			resp, err := postJSON(srv.URL+"/matches", map[string]any{"index": 0})
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When creating a duplicate match", func() {
			deps.err = fmt.Errorf("match already exists")
			resp, err := postJSON(srv.URL+"/matches", map[string]any{"scope": "cup"})
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})

		Convey("When listing matches in a scope", func() {
			resp, err := http.Get(srv.URL + "/matches?scope=cup")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var matches []model.Match
			So(json.NewDecoder(resp.Body).Decode(&matches), ShouldBeNil)
			So(len(matches), ShouldEqual, 2)
		})

		Convey("When listing without a scope", func() {
			resp, err := http.Get(srv.URL + "/matches")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When fetching one match", func() {
			resp, err := http.Get(srv.URL + "/matches/cup/0")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var m model.Match
			So(json.NewDecoder(resp.Body).Decode(&m), ShouldBeNil)
			So(m.ScoreA, ShouldEqual, 11)
		})

		Convey("When fetching a missing match", func() {
			deps.err = fmt.Errorf("match not found")
			resp, err := http.Get(srv.URL + "/matches/cup/404")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When fetching with a non-numeric index", func() {
			resp, err := http.Get(srv.URL + "/matches/cup/final")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When flipping the done flag", func() {
			resp, err := postJSON(srv.URL+"/matches/cup/0/done", map[string]any{"done": true})
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the updated match comes back", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(deps.lastSetDone, ShouldBeTrue)

				var m model.Match
				So(json.NewDecoder(resp.Body).Decode(&m), ShouldBeNil)
				So(m.Done, ShouldBeTrue)
			})
		})

		Convey("When flipping done on a tied match", func() {
			deps.err = fmt.Errorf("match is tied")
			resp, err := postJSON(srv.URL+"/matches/cup/0/done", map[string]any{"done": true})
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
		})

		Convey("When requesting bracket advancement", func() {
			deps.advanced = 2
			resp, err := postJSON(srv.URL+"/matches/cup/advance", map[string]any{})
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var body struct {
				Advanced int `json:"advanced"`
			}
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body.Advanced, ShouldEqual, 2)
		})

		Convey("When hitting an unknown sub-path", func() {
			resp, err := http.Get(srv.URL + "/matches/cup/0/history")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestLeaderboardEndpoint(t *testing.T) {
	Convey("Given the leaderboard endpoint", t, func() {
		deps := &stubDeps{entries: []model.LeaderboardEntry{
			{Rank: 1, PlayerID: "ana", Won: 3},
			{Rank: 2, PlayerID: "bo", Won: 1},
		}}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When requested without a limit", func() {
			resp, err := http.Get(srv.URL + "/leaderboard")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the default cap applies", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 100)

				var entries []model.LeaderboardEntry
				So(json.NewDecoder(resp.Body).Decode(&entries), ShouldBeNil)
				So(len(entries), ShouldEqual, 2)
				So(entries[0].PlayerID, ShouldEqual, "ana")
			})
		})

		Convey("When requested with an explicit limit", func() {
			resp, err := http.Get(srv.URL + "/leaderboard?limit=5")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(deps.lastLimit, ShouldEqual, 5)
		})

		Convey("When the limit is not a number", func() {
			resp, err := http.Get(srv.URL + "/leaderboard?limit=lots")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the limit exceeds the cap", func() {
			resp, err := http.Get(srv.URL + "/leaderboard?limit=101")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a lower cap is configured", func() {
			capped := newTestServer(deps, api.WithMaxLeaderboardLimit(10))
			defer capped.Close()

			resp, err := http.Get(capped.URL + "/leaderboard?limit=11")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When there are no standings", func() {
			deps.entries = nil
			resp, err := http.Get(srv.URL + "/leaderboard")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the body is an empty array, not null", func() {
				var entries []model.LeaderboardEntry
				So(json.NewDecoder(resp.Body).Decode(&entries), ShouldBeNil)
				So(entries, ShouldNotBeNil)
				So(len(entries), ShouldEqual, 0)
			})
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		srv := newTestServer(&stubDeps{})
		defer srv.Close()

		Convey("When stats are requested", func() {
			resp, err := http.Get(srv.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["started"], ShouldEqual, true)
		})

		Convey("When health is requested", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}

func TestRateLimiting(t *testing.T) {
	Convey("Given a server with a tight write limit", t, func() {
		deps := &stubDeps{result: model.Result{Outcome: model.OutcomeApplied}}
		srv := newTestServer(deps, api.WithRateLimiter(api.NewRateLimiter(1, 2)))
		defer srv.Close()

		Convey("When writes arrive faster than the limit", func() {
			statuses := make([]int, 0, 5)
			for i := 0; i < 5; i++ {
				resp, err := postJSON(srv.URL+"/events", eventBody(fmt.Sprintf("e%d", i)))
				So(err, ShouldBeNil)
				statuses = append(statuses, resp.StatusCode)
				resp.Body.Close()
			}

			Convey("Then the burst passes and the rest are rejected", func() {
				limited := 0
				for _, st := range statuses {
					if st == http.StatusTooManyRequests {
						limited++
					}
				}
				So(statuses[0], ShouldEqual, http.StatusOK)
				So(limited, ShouldBeGreaterThan, 0)
			})
		})

		Convey("And reads are never limited", func() {
			for i := 0; i < 5; i++ {
				resp, err := http.Get(srv.URL + "/leaderboard")
				So(err, ShouldBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				resp.Body.Close()
			}
		})
	})
}
