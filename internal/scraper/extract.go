package scraper

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MinContentLength is the minimum number of characters a page must yield.
const MinContentLength = 200

// ErrInsufficientContent is returned when a page yields too little text.
var ErrInsufficientContent = errors.New("insufficient recipe content")

// strippedSelectors are removed before any text is read.
const strippedSelectors = "script, style, noscript, nav, header, footer, aside, form, iframe, svg, " +
	".ad, .ads, .advertisement, [class*='advert'], [id^='ad-'], [class*='sponsored'], [class*='newsletter']"

// contentSelectors are tried in order; the first region with enough text wins.
var contentSelectors = []string{
	"[itemtype*='schema.org/Recipe']",
	".wprm-recipe-container, .tasty-recipes, .mv-create-card, .recipe-card, .easyrecipe, .recipe-content",
	"article",
	"main",
	"[role='main']",
	"#content",
}

// Extract reduces a recipe page to its recipe text and a best-effort image.
func Extract(pageURL, rawHTML string) (*ScrapeResult, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	// JSON-LD lives in script tags, so it is read before they are stripped.
	ld := findJSONLDRecipe(doc)
	doc.Find(strippedSelectors).Remove()

	var content string
	var region *goquery.Selection
	if ld != nil {
		if text := ld.text(); runeLen(text) >= MinContentLength {
			content = text
		}
	}
	if content == "" {
		for _, sel := range contentSelectors {
			s := doc.Find(sel).First()
			if s.Length() == 0 {
				continue
			}
			if text := selectionText(s); runeLen(text) >= MinContentLength {
				content = text
				region = s
				break
			}
		}
	}
	if content == "" {
		region = doc.Find("body")
		content = selectionText(region)
	}

	if runeLen(content) < MinContentLength {
		return nil, fmt.Errorf("%s: %w (%d chars)", pageURL, ErrInsufficientContent, runeLen(content))
	}

	return &ScrapeResult{
		Content:  content,
		ImageURL: findImage(pageURL, ld, doc, region),
	}, nil
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// selectionText renders the text of a selection with line breaks at block
// boundaries and whitespace collapsed.
func selectionText(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	var b strings.Builder
	for _, n := range s.Nodes {
		writeNodeText(n, &b)
	}
	return normalizeWhitespace(b.String())
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Br: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Ul: true, atom.Ol: true, atom.Table: true,
	atom.Dt: true, atom.Dd: true, atom.Blockquote: true, atom.Main: true,
}

func writeNodeText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	}
	block := n.Type == html.ElementNode && blockAtoms[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNodeText(c, b)
	}
	if block {
		b.WriteByte('\n')
	}
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// --- JSON-LD ---

// jsonLDRecipe represents the JSON-LD Recipe schema (subset of fields we care about).
type jsonLDRecipe struct {
	Type         interface{} `json:"@type"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Ingredients  []string    `json:"recipeIngredient"`
	Instructions interface{} `json:"recipeInstructions"`
	Yield        interface{} `json:"recipeYield"`
	Image        interface{} `json:"image"`
}

// findJSONLDRecipe returns the first Recipe object found in the page's
// application/ld+json blocks.
func findJSONLDRecipe(doc *goquery.Document) *jsonLDRecipe {
	var found *jsonLDRecipe
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		found = parseJSONLD([]byte(raw))
		return found == nil
	})
	return found
}

// parseJSONLD handles single objects, arrays and @graph containers.
func parseJSONLD(raw []byte) *jsonLDRecipe {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		for _, item := range arr {
			if r := parseJSONLD(item); r != nil {
				return r
			}
		}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}

	if graph, ok := obj["@graph"]; ok {
		return parseJSONLD(graph)
	}

	var recipe jsonLDRecipe
	if err := json.Unmarshal(raw, &recipe); err != nil {
		return nil
	}
	if !isRecipeType(recipe.Type) || recipe.Name == "" {
		return nil
	}
	return &recipe
}

// isRecipeType checks if the @type field indicates a Recipe.
func isRecipeType(typeField interface{}) bool {
	switch v := typeField.(type) {
	case string:
		return v == "Recipe" || strings.HasSuffix(v, "/Recipe")
	case []interface{}:
		for _, t := range v {
			if s, ok := t.(string); ok && isRecipeType(s) {
				return true
			}
		}
	}
	return false
}

// text renders the recipe as plain text for the formatter.
func (r *jsonLDRecipe) text() string {
	var b strings.Builder
	b.WriteString(r.Name)
	b.WriteByte('\n')
	if r.Description != "" {
		b.WriteString(r.Description)
		b.WriteByte('\n')
	}
	if y := parseYield(r.Yield); y > 0 {
		fmt.Fprintf(&b, "Servings: %d\n", y)
	}
	if len(r.Ingredients) > 0 {
		b.WriteString("Ingredients:\n")
		for _, ing := range r.Ingredients {
			b.WriteString("- " + ing + "\n")
		}
	}
	if steps := parseJSONLDInstructions(r.Instructions); len(steps) > 0 {
		b.WriteString("Instructions:\n")
		for i, step := range steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}
	return normalizeWhitespace(html.UnescapeString(b.String()))
}

// parseJSONLDInstructions extracts instruction strings from various JSON-LD formats.
func parseJSONLDInstructions(instructions interface{}) []string {
	switch v := instructions.(type) {
	case string:
		return []string{v}
	case []interface{}:
		var result []string
		for _, item := range v {
			switch step := item.(type) {
			case string:
				result = append(result, step)
			case map[string]interface{}:
				// HowToStep or HowToSection
				if text, ok := step["text"].(string); ok {
					result = append(result, text)
				} else if items, ok := step["itemListElement"].([]interface{}); ok {
					result = append(result, parseJSONLDInstructions(items)...)
				}
			}
		}
		return result
	}
	return nil
}

// parseYield extracts a portion count from the recipeYield field.
func parseYield(yield interface{}) int {
	switch v := yield.(type) {
	case string:
		var n int
		fmt.Sscanf(v, "%d", &n)
		return n
	case float64:
		return int(v)
	case []interface{}:
		if len(v) > 0 {
			return parseYield(v[0])
		}
	}
	return 0
}

// --- Image ---

func findImage(pageURL string, ld *jsonLDRecipe, doc *goquery.Document, region *goquery.Selection) string {
	var candidates []string
	if ld != nil {
		candidates = append(candidates, jsonLDImage(ld.Image))
	}
	candidates = append(candidates,
		metaContent(doc, "meta[property='og:image']"),
		metaContent(doc, "meta[name='twitter:image'], meta[property='twitter:image']"),
	)
	if region != nil {
		img := region.Find("img").First()
		src, _ := img.Attr("src")
		if src == "" {
			src, _ = img.Attr("data-src")
		}
		candidates = append(candidates, src)
	}

	for _, c := range candidates {
		if resolved := resolveURL(pageURL, c); resolved != "" {
			return resolved
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return content
}

// jsonLDImage handles string, array and ImageObject forms.
func jsonLDImage(image interface{}) string {
	switch v := image.(type) {
	case string:
		return v
	case []interface{}:
		for _, item := range v {
			if s := jsonLDImage(item); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		if u, ok := v["url"].(string); ok {
			return u
		}
	}
	return ""
}

// resolveURL resolves ref against base and returns it only if it is http(s).
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if b, err := url.Parse(base); err == nil {
		r = b.ResolveReference(r)
	}
	if r.Scheme != "http" && r.Scheme != "https" {
		return ""
	}
	return r.String()
}
