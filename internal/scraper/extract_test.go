package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filler = "Simmer gently until the broth turns a deep red and the kimchi is soft. "

func TestExtract_JSONLDGraph(t *testing.T) {
	page := `<html><head>
	<script type="application/ld+json">{"@context":"https://schema.org","@graph":[
		{"@type":"WebSite","name":"Example"},
		{"@type":["Recipe"],"name":"Kimchi Jjigae","description":"A spicy Korean stew.",
		 "recipeYield":["4","4 bowls"],
		 "image":{"@type":"ImageObject","url":"/img/jjigae.jpg"},
		 "recipeIngredient":["2 cups aged kimchi","200 g pork belly","1 block tofu","1 tbsp gochugaru"],
		 "recipeInstructions":[
			{"@type":"HowToSection","itemListElement":[
				{"@type":"HowToStep","text":"Fry the pork belly until the fat renders."},
				{"@type":"HowToStep","text":"Add kimchi and cook for five minutes."}
			]},
			{"@type":"HowToStep","text":"Pour in water and simmer for twenty minutes, then add tofu."}
		 ]}
	]}</script></head>
	<body><p>Short intro.</p></body></html>`

	result, err := Extract("https://example.com/recipes/jjigae", page)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Content, "Kimchi Jjigae\n"))
	assert.Contains(t, result.Content, "Servings: 4")
	assert.Contains(t, result.Content, "- 200 g pork belly")
	assert.Contains(t, result.Content, "1. Fry the pork belly until the fat renders.")
	assert.Contains(t, result.Content, "3. Pour in water")
	assert.Equal(t, "https://example.com/img/jjigae.jpg", result.ImageURL)
}

func TestExtract_ArticleBeatsBoilerplate(t *testing.T) {
	page := `<html><head><meta property="og:image" content="https://cdn.example.com/og.jpg"></head><body>
	<nav>` + strings.Repeat("Home About Contact Subscribe ", 20) + `</nav>
	<div class="ad">` + strings.Repeat("Buy now ", 50) + `</div>
	<article><h1>Tofu Stew</h1><ul><li>1 block tofu</li><li>2 cups stock</li></ul>
	<p>` + strings.Repeat(filler, 4) + `</p></article>
	<footer>Copyright</footer></body></html>`

	result, err := Extract("https://example.com/tofu", page)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Content, "Tofu Stew\n1 block tofu\n2 cups stock\n"))
	assert.NotContains(t, result.Content, "Subscribe")
	assert.NotContains(t, result.Content, "Buy now")
	assert.NotContains(t, result.Content, "Copyright")
	assert.Equal(t, "https://cdn.example.com/og.jpg", result.ImageURL)
}

func TestExtract_MicrodataPreferredOverArticle(t *testing.T) {
	page := `<html><body>
	<article><p>` + strings.Repeat("Story about my grandmother. ", 20) + `</p>
	<div itemscope itemtype="https://schema.org/Recipe"><h2>Stew</h2><p>` + strings.Repeat(filler, 4) + `</p></div>
	</article></body></html>`

	result, err := Extract("https://example.com/stew", page)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Content, "Stew\n"))
	assert.NotContains(t, result.Content, "grandmother")
}

func TestExtract_BodyFallbackAndRegionImage(t *testing.T) {
	page := `<html><body><div><img data-src="images/stew.png"><p>` + strings.Repeat(filler, 4) + `</p></div></body></html>`

	result, err := Extract("https://example.com/blog/stew", page)
	require.NoError(t, err)
	assert.Contains(t, result.Content, "Simmer gently")
	assert.Equal(t, "https://example.com/blog/images/stew.png", result.ImageURL)
}

func TestExtract_ShortArticleFallsThroughToLongerRegion(t *testing.T) {
	page := `<html><body><article>Too short.</article><main><p>` + strings.Repeat(filler, 4) + `</p></main></body></html>`

	result, err := Extract("https://example.com/x", page)
	require.NoError(t, err)
	assert.NotContains(t, result.Content, "Too short.")
}

func TestExtract_InsufficientContent(t *testing.T) {
	page := `<html><body><script>` + strings.Repeat("var x = 1;", 100) + `</script><p>Access denied.</p></body></html>`

	_, err := Extract("https://example.com/blocked", page)
	assert.ErrorIs(t, err, ErrInsufficientContent)
}

func TestExtract_IgnoresNonRecipeJSONLD(t *testing.T) {
	page := `<html><head><script type="application/ld+json">{"@type":"Article","name":"News"}</script>
	<script type="application/ld+json">not json</script></head>
	<body><main>` + strings.Repeat(filler, 4) + `</main></body></html>`

	result, err := Extract("https://example.com/news", page)
	require.NoError(t, err)
	assert.NotContains(t, result.Content, "News")
	assert.Empty(t, result.ImageURL)
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://a.com/b/c.jpg", resolveURL("https://a.com/b/page", "c.jpg"))
	assert.Equal(t, "https://cdn.com/x.jpg", resolveURL("https://a.com/", "//cdn.com/x.jpg"))
	assert.Empty(t, resolveURL("https://a.com/", "data:image/png;base64,AAAA"))
	assert.Empty(t, resolveURL("https://a.com/", "  "))
}
