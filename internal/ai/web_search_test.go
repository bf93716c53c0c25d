package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSearchProvider(braveURL, googleURL string) *WebSearchProvider {
	p := NewWebSearchProvider("gkey", "gcx", "bkey")
	p.braveEndpoint = braveURL
	p.googleEndpoint = googleURL
	return p
}

func TestBuildQueryString(t *testing.T) {
	q := BuildQueryString(SearchQuery{
		Query:          "kimchi stew",
		ExcludeTerms:   []string{"shrimp", "fish sauce", " "},
		ExcludeDomains: []string{"pinterest.com"},
	})
	assert.Equal(t, `kimchi stew recipe -shrimp -"fish sauce" -site:pinterest.com`, q)
}

func TestSearchRecipes_Brave(t *testing.T) {
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bkey", r.Header.Get("X-Subscription-Token"))
		assert.Contains(t, r.URL.Query().Get("q"), "-site:pinterest.com")
		w.Write([]byte(`{"type":"search","web":{"results":[
			{"title":"Kimchi Jjigae","url":"https://www.maangchi.com/recipe/kimchi-jjigae","description":"Classic stew"}
		]}}`))
	}))
	defer brave.Close()

	p := newTestSearchProvider(brave.URL, "http://unused.invalid")
	results, err := p.SearchRecipes(context.Background(), SearchQuery{Query: "kimchi stew", ExcludeDomains: []string{"pinterest.com"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "www.maangchi.com", results[0].Source)
	assert.False(t, results[0].Salvaged)
}

func TestSearchRecipes_FallsBackToGoogleAndMarksExhausted(t *testing.T) {
	var braveCalls atomic.Int32
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		braveCalls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer brave.Close()

	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gcx", r.URL.Query().Get("cx"))
		w.Write([]byte(`{"kind":"customsearch#search","items":[
			{"title":"Stew","link":"https://example.com/stew","snippet":"good"}
		]}`))
	}))
	defer google.Close()

	p := newTestSearchProvider(brave.URL, google.URL)
	for i := 0; i < 2; i++ {
		results, err := p.SearchRecipes(context.Background(), SearchQuery{Query: "stew"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "https://example.com/stew", results[0].URL)
	}
	assert.Equal(t, int32(1), braveCalls.Load(), "brave should not be retried after quota exhaustion")
}

func TestSearchRecipes_SalvagesUnstructuredBody(t *testing.T) {
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>Results: <a href="https://cooking.example.org/kimchi-jjigae">x</a>
			https://search.brave.com/help and https://food.example.net/recipes/tofu_stew.html,
			https://cooking.example.org/kimchi-jjigae</html>`))
	}))
	defer brave.Close()

	p := newTestSearchProvider(brave.URL, "http://unused.invalid")
	results, err := p.SearchRecipes(context.Background(), SearchQuery{Query: "stew"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Salvaged)
	assert.Equal(t, "kimchi jjigae", results[0].Title)
	assert.Equal(t, "https://food.example.net/recipes/tofu_stew.html", results[1].URL)
	assert.Equal(t, "tofu stew", results[1].Title)
}

func TestSearchRecipes_NoProviders(t *testing.T) {
	p := NewWebSearchProvider("", "", "")
	_, err := p.SearchRecipes(context.Background(), SearchQuery{Query: "stew"})
	assert.Error(t, err)
}

func TestSearchRecipes_GoogleErrorBlock(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":403,"message":"quota"}}`))
	}))
	defer google.Close()

	p := NewWebSearchProvider("gkey", "gcx", "")
	p.googleEndpoint = google.URL
	_, err := p.SearchRecipes(context.Background(), SearchQuery{Query: "stew"})
	require.Error(t, err)
	assert.True(t, p.googleExhausted.Load())
}

func TestSearchRecipes_EmptyBraveFallsThroughToGoogle(t *testing.T) {
	bodies := []string{
		`{"type":"search","web":{"results":[]}}`,
		`{"type":"search"}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer brave.Close()

			var googleCalls atomic.Int32
			google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				googleCalls.Add(1)
				w.Write([]byte(`{"kind":"customsearch#search","items":[
					{"title":"Stew","link":"https://example.com/stew","snippet":"good"}
				]}`))
			}))
			defer google.Close()

			p := newTestSearchProvider(brave.URL, google.URL)
			results, err := p.SearchRecipes(context.Background(), SearchQuery{Query: "stew"})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "https://example.com/stew", results[0].URL)
			assert.Equal(t, int32(1), googleCalls.Load())
			assert.False(t, p.braveExhausted.Load())
		})
	}
}

func TestSearchRecipes_EmptyBraveWithoutGoogle(t *testing.T) {
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"search","web":{"results":[]}}`))
	}))
	defer brave.Close()

	p := NewWebSearchProvider("", "", "bkey")
	p.braveEndpoint = brave.URL
	results, err := p.SearchRecipes(context.Background(), SearchQuery{Query: "stew"})
	require.NoError(t, err)
	assert.Empty(t, results)
}
