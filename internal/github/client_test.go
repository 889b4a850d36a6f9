package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pr-review-digest/internal/config"
	"pr-review-digest/pkg/models"
)

var repo = models.Repository{Owner: "acme", Name: "api", Icon: ":rocket:"}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	c, err := NewClientFromHTTP(ts.Client(), ts.URL)
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(context.Background(), config.GitHubConfig{Token: "t", TimeoutSeconds: 5})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "https://api.github.com/", c.gh.BaseURL.String())
}

func TestNewClient_EnterpriseURL(t *testing.T) {
	c, err := NewClient(context.Background(), config.GitHubConfig{
		Token:          "t",
		TimeoutSeconds: 5,
		APIURL:         "https://github.example.com/api/v3/",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://github.example.com/api/v3/", c.gh.BaseURL.String())
}

func TestClient_TestConnection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login":"digest-bot"}`)
	})
	c := newTestClient(t, mux)

	login, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "digest-bot", login)
}

func TestClient_TestConnection_Unauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"Bad credentials"}`)
	})
	c := newTestClient(t, mux)

	_, err := c.TestConnection(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Contains(t, err.Error(), "Bad credentials")
}

func TestClient_ListOpenPullRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/pulls", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "open", q.Get("state"))
		assert.Equal(t, "updated", q.Get("sort"))
		assert.Equal(t, "desc", q.Get("direction"))
		fmt.Fprint(w, `[
			{
				"number": 12,
				"title": "Add rate limiter",
				"html_url": "https://github.com/acme/api/pull/12",
				"user": {"login": "alice"},
				"draft": false,
				"labels": [{"name": "feature"}],
				"requested_reviewers": [{"login": "carol"}],
				"created_at": "2026-10-01T10:00:00Z",
				"updated_at": "2026-10-18T10:00:00Z"
			},
			{
				"number": 13,
				"title": "WIP: refactor",
				"html_url": "https://github.com/acme/api/pull/13",
				"user": {"login": "bob"},
				"draft": true
			}
		]`)
	})
	mux.HandleFunc("/repos/acme/api/pulls/12/reviews", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"user": {"login": "dave"}, "state": "APPROVED", "submitted_at": "2026-10-02T10:00:00Z"},
			{"user": {"login": "erin"}, "state": "CHANGES_REQUESTED", "submitted_at": "2026-10-03T10:00:00Z"},
			{"user": {"login": "frank"}, "state": "PENDING"}
		]`)
	})
	mux.HandleFunc("/repos/acme/api/pulls/13/reviews", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	c := newTestClient(t, mux)

	prs, err := c.ListOpenPullRequests(context.Background(), repo)
	require.NoError(t, err)
	require.Len(t, prs, 2)

	pr := prs[0]
	assert.Equal(t, 12, pr.Number)
	assert.Equal(t, "Add rate limiter", pr.Title)
	assert.Equal(t, "alice", pr.Author)
	assert.Equal(t, "https://github.com/acme/api/pull/12", pr.URL)
	assert.Equal(t, repo, pr.Repository)
	assert.Equal(t, []string{"feature"}, pr.Labels)
	assert.Equal(t, []string{"carol"}, pr.RequestedReviewers)
	assert.Equal(t, time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC), pr.UpdatedAt.UTC())
	require.Len(t, pr.Reviews, 3)
	assert.Equal(t, models.Review{
		Reviewer:    "dave",
		State:       models.ReviewStateApproved,
		SubmittedAt: time.Date(2026, 10, 2, 10, 0, 0, 0, time.UTC),
	}, models.Review{Reviewer: pr.Reviews[0].Reviewer, State: pr.Reviews[0].State, SubmittedAt: pr.Reviews[0].SubmittedAt.UTC()})
	assert.Equal(t, models.ReviewStateChangesRequested, pr.Reviews[1].State)
	assert.Equal(t, models.ReviewStatePending, pr.Reviews[2].State)
	assert.True(t, pr.Reviews[2].SubmittedAt.IsZero())

	assert.True(t, prs[1].Draft)
	assert.Empty(t, prs[1].Reviews)
}

func TestClient_ListOpenPullRequests_Pagination(t *testing.T) {
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api/pulls", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"number": 2, "title": "second"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/acme/api/pulls?page=2>; rel="next"`, serverURL))
		fmt.Fprint(w, `[{"number": 1, "title": "first"}]`)
	})
	mux.HandleFunc("/repos/acme/api/pulls/1/reviews", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/repos/acme/api/pulls/2/reviews", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"user": {"login": "dave"}, "state": "COMMENTED", "submitted_at": "2026-10-02T10:00:00Z"}]`)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	serverURL = ts.URL

	c, err := NewClientFromHTTP(ts.Client(), ts.URL)
	require.NoError(t, err)

	prs, err := c.ListOpenPullRequests(context.Background(), repo)
	require.NoError(t, err)
	require.Len(t, prs, 2)
	assert.Equal(t, 1, prs[0].Number)
	assert.Equal(t, 2, prs[1].Number)
	require.Len(t, prs[1].Reviews, 1)
	assert.Equal(t, models.ReviewStateCommented, prs[1].Reviews[0].State)
}

func TestClient_ListOpenPullRequests_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pulls   http.HandlerFunc
		reviews http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "unauthorized",
			pulls: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"message":"Bad credentials"}`)
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrUnauthorized))
			},
		},
		{
			name: "server error",
			pulls: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message":"boom"}`)
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "listing pull requests for acme/api")
				assert.False(t, errors.Is(err, ErrUnauthorized))
			},
		},
		{
			name: "malformed pulls response",
			pulls: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{not json`)
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "listing pull requests for acme/api")
			},
		},
		{
			name: "reviews fail",
			pulls: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `[{"number": 5, "title": "x"}]`)
			},
			reviews: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"Not Found"}`)
			},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "listing reviews for acme/api#5")
			},
		},
		{
			name: "rate limited",
			pulls: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Limit", "5000")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", "1792000000")
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
			},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, ErrRateLimited))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/repos/acme/api/pulls", tt.pulls)
			if tt.reviews != nil {
				mux.HandleFunc("/repos/acme/api/pulls/5/reviews", tt.reviews)
			}
			c := newTestClient(t, mux)

			prs, err := c.ListOpenPullRequests(context.Background(), repo)
			require.Error(t, err)
			assert.Nil(t, prs)
			tt.check(t, err)
		})
	}
}

func TestFilterPullRequests(t *testing.T) {
	prs := []models.PullRequest{
		{Number: 1, Title: "Normal PR"},
		{Number: 2, Title: "WIP: Work in progress"},
		{Number: 3, Title: "DRAFT: Another draft"},
		{Number: 4, Title: "Another normal PR", Draft: true},
		{Number: 5, Title: "wip: lowercase"},
	}

	tests := []struct {
		name       string
		keywords   []string
		skipDrafts bool
		expected   []int
	}{
		{"keywords only", []string{"WIP", "DRAFT"}, false, []int{1, 4}},
		{"keywords and drafts", []string{"WIP", "DRAFT"}, true, []int{1}},
		{"drafts only", nil, true, []int{1, 2, 3, 5}},
		{"nothing filtered", []string{}, false, []int{1, 2, 3, 4, 5}},
		{"empty keyword ignored", []string{""}, false, []int{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var numbers []int
			for _, pr := range FilterPullRequests(prs, tt.keywords, tt.skipDrafts) {
				numbers = append(numbers, pr.Number)
			}
			assert.Equal(t, tt.expected, numbers)
		})
	}
}

func TestFilterPullRequests_NoPRs(t *testing.T) {
	assert.Empty(t, FilterPullRequests(nil, []string{"WIP"}, true))
}
