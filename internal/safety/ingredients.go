package safety

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// family is a group of ingredient terms covered by one allergen or dietary
// restriction. safe holds regex fragments for phrases that look like a
// term but are not ("peanut butter" for dairy, "eggplant" for egg).
type family struct {
	terms   []string
	safe    []string
	freeOf  []string // "<x>-free <ingredient>" is safe for this family
	exclude []string // short list sent to search providers
}

var (
	nutFamily = family{
		terms: []string{"almond", "walnut", "pecan", "cashew", "pistachio", "hazelnut", "filbert",
			"macadamia", "brazil nut", "pine nut", "praline", "marzipan", "nutella", "nut", "tree nut"},
		safe:    []string{`nutmeg`, `coconut`, `butternut`, `water chestnut`, `doughnut`, `donut`, `nutrition\w*`},
		freeOf:  []string{"nut", "tree nut"},
		exclude: []string{"almond", "walnut", "pecan", "cashew"},
	}
	peanutFamily = family{
		terms:   []string{"peanut", "peanut butter", "peanut oil", "groundnut", "satay"},
		freeOf:  []string{"peanut"},
		exclude: []string{"peanut"},
	}
	dairyFamily = family{
		terms: []string{"milk", "butter", "buttermilk", "cheese", "cream", "sour cream", "heavy cream",
			"yogurt", "yoghurt", "ghee", "whey", "casein", "parmesan", "mozzarella", "cheddar", "ricotta",
			"mascarpone", "feta", "paneer", "half-and-half", "custard", "creme fraiche", "crème fraîche"},
		safe: []string{`(?:coconut|almond|oat|soy|soya|rice|cashew|hemp|plant|flax)\s+(?:milk|cream|yogh?urt|cheese)`,
			`(?:peanut|almond|cashew|apple|cocoa|shea|sunflower seed|seed|nut|vegan|plant-based)\s+butter`,
			`cream of tartar`, `cream of coconut`, `butter beans?`, `butter lettuce`, `butterscotch`, `butternut`,
			`butterhead`, `butterfl\w*`, `creamy`, `cheesecloth`, `vegan\s+[\w-]+`, `nutritional yeast`},
		freeOf:  []string{"dairy", "milk", "lactose"},
		exclude: []string{"cheese", "butter", "cream", "milk"},
	}
	glutenFamily = family{
		terms: []string{"wheat", "flour", "all-purpose flour", "bread", "breadcrumbs", "bread crumbs", "panko",
			"pasta", "spaghetti", "macaroni", "noodles", "barley", "rye", "semolina", "couscous", "bulgur",
			"farro", "seitan", "soy sauce", "beer", "cracker", "tortilla", "pie crust", "puff pastry", "malt"},
		safe: []string{`(?:rice|almond|coconut|corn|chickpea|tapioca|potato|buckwheat|oat|cassava|sorghum|millet)\s+(?:flour|noodles?|tortillas?|crackers?|bread)`,
			`glass noodles?`, `(?:gluten|wheat)[- ]free(?:\s+[\w-]+){0,2}`, `tamari`, `breadfruit`, `maltodextrin`},
		freeOf:  []string{"gluten", "wheat"},
		exclude: []string{"wheat", "flour", "pasta", "bread"},
	}
	soyFamily = family{
		terms:   []string{"soy", "soya", "soybean", "soy sauce", "tofu", "tempeh", "edamame", "miso", "tamari"},
		freeOf:  []string{"soy"},
		exclude: []string{"soy", "tofu"},
	}
	shellfishFamily = family{
		terms: []string{"shrimp", "prawn", "crab", "lobster", "crayfish", "crawfish", "scallop", "clam",
			"mussel", "oyster", "oyster sauce", "squid", "calamari", "octopus", "langoustine", "shellfish",
			"shrimp paste", "saeujeot"},
		safe:    []string{`oyster mushrooms?`, `imitation crab\w*`, `crab ?apple`, `scalloped`},
		freeOf:  []string{"shellfish"},
		exclude: []string{"shrimp", "crab", "lobster", "shellfish"},
	}
	fishFamily = family{
		terms: []string{"fish", "fish sauce", "salmon", "tuna", "cod", "anchovy", "anchovies", "sardine",
			"mackerel", "trout", "halibut", "tilapia", "haddock", "swordfish", "catfish", "monkfish",
			"bonito", "dashi", "worcestershire", "caviar"},
		safe:    []string{`vegan fish sauce`, `fish[- ]free`, `coddled?`},
		freeOf:  []string{"fish"},
		exclude: []string{"fish", "salmon", "tuna", "anchovy"},
	}
	eggFamily = family{
		terms:   []string{"egg", "egg yolk", "egg white", "mayonnaise", "mayo", "meringue", "aioli"},
		safe:    []string{`eggplant`, `flax egg`, `chia egg`, `vegan\s+(?:mayonnaise|mayo|egg)`},
		freeOf:  []string{"egg"},
		exclude: []string{"egg"},
	}
	sesameFamily = family{
		terms:   []string{"sesame", "sesame oil", "sesame seed", "tahini", "gomasio", "furikake"},
		freeOf:  []string{"sesame"},
		exclude: []string{"sesame", "tahini"},
	}
	meatFamily = family{
		terms: []string{"meat", "beef", "pork", "pork belly", "chicken", "lamb", "mutton", "veal", "turkey",
			"duck", "goose", "venison", "bacon", "ham", "sausage", "prosciutto", "pancetta", "chorizo",
			"salami", "pepperoni", "spam", "gelatin", "gelatine", "lard", "chicken broth", "chicken stock",
			"beef broth", "beef stock", "bone broth", "steak", "ground beef"},
		safe: []string{`(?:vegan|vegetarian|plant-based|meatless|veggie|beyond|impossible)\s+[\w-]+`, `mincemeat`,
			`hamburger buns?`, `gooseberr\w*`},
		freeOf:  []string{"meat"},
		exclude: []string{"meat", "chicken", "beef", "pork"},
	}
	porkFamily = family{
		terms: []string{"pork", "pork belly", "bacon", "ham", "prosciutto", "pancetta", "chorizo", "salami",
			"pepperoni", "spam", "lard", "gelatin", "gelatine", "sausage"},
		safe:    []string{`(?:vegan|vegetarian|plant-based|turkey|chicken|beef)\s+(?:bacon|ham|sausage|pepperoni|chorizo|salami)`, `hamburger`},
		freeOf:  []string{"pork"},
		exclude: []string{"pork", "bacon", "ham"},
	}
	alcoholFamily = family{
		terms: []string{"wine", "beer", "rum", "bourbon", "brandy", "sake", "mirin", "vodka", "whiskey",
			"whisky", "liqueur", "sherry", "cognac", "tequila", "gin", "soju"},
		safe:    []string{`(?:wine|rice|sherry|cider)\s+vinegar`, `non-alcoholic\s+[\w-]+`, `ginger\w*`, `ginseng`, `rump`},
		freeOf:  []string{"alcohol"},
		exclude: []string{"wine", "beer"},
	}
	honeyFamily = family{
		terms:   []string{"honey"},
		safe:    []string{`honeydew`, `honeycrisp`},
		exclude: []string{"honey"},
	}
)

// constraintFamilies maps an allergen or restriction name to the families
// it forbids.
var constraintFamilies = map[string][]family{
	"nuts": {nutFamily}, "nut": {nutFamily}, "tree nuts": {nutFamily}, "tree nut": {nutFamily},
	"nut-free": {nutFamily},
	"peanut": {peanutFamily}, "peanuts": {peanutFamily},
	"dairy": {dairyFamily}, "milk": {dairyFamily}, "lactose": {dairyFamily}, "dairy-free": {dairyFamily},
	"lactose intolerant": {dairyFamily},
	"gluten": {glutenFamily}, "wheat": {glutenFamily}, "celiac": {glutenFamily}, "coeliac": {glutenFamily},
	"gluten-free": {glutenFamily},
	"soy": {soyFamily}, "soya": {soyFamily}, "soybeans": {soyFamily},
	"shellfish": {shellfishFamily}, "crustaceans": {shellfishFamily}, "mollusks": {shellfishFamily},
	"fish": {fishFamily},
	"egg": {eggFamily}, "eggs": {eggFamily},
	"sesame": {sesameFamily},
	"vegetarian":  {meatFamily, fishFamily, shellfishFamily},
	"vegan":       {meatFamily, fishFamily, shellfishFamily, dairyFamily, eggFamily, honeyFamily},
	"pescatarian": {meatFamily},
	"halal":       {porkFamily, alcoholFamily},
	"kosher":      {porkFamily, shellfishFamily},
	"no pork":     {porkFamily},
	"no alcohol":  {alcoholFamily}, "alcohol-free": {alcoholFamily},
}

// compiledFamily is a family with its patterns built.
type compiledFamily struct {
	constraint string
	terms      *regexp.Regexp
	safe       *regexp.Regexp
	exclude    []string
}

// Violation is a single ingredient line that breaks a constraint.
type Violation struct {
	Ingredient string
	Constraint string
	Term       string
}

// Detector finds ingredients that break allergen or dietary constraints.
// Unknown constraint names are matched literally.
type Detector struct {
	cache map[string][]compiledFamily
}

// NewDetector creates a Detector with patterns for every known constraint.
func NewDetector() *Detector {
	d := &Detector{cache: make(map[string][]compiledFamily, len(constraintFamilies))}
	for name, families := range constraintFamilies {
		d.cache[name] = compileFamilies(name, families)
	}
	return d
}

func compileFamilies(constraint string, families []family) []compiledFamily {
	out := make([]compiledFamily, 0, len(families))
	for _, f := range families {
		safe := append([]string(nil), f.safe...)
		for _, x := range f.freeOf {
			safe = append(safe, regexp.QuoteMeta(x)+`[- ]free(?:\s+[\w-]+){0,2}`)
		}
		cf := compiledFamily{
			constraint: constraint,
			terms:      prefixPattern(f.terms),
			exclude:    f.exclude,
		}
		if len(safe) > 0 {
			cf.safe = regexp.MustCompile(`(?i)\b(?:` + strings.Join(safe, "|") + `)(?:e?s)?\b`)
		}
		out = append(out, cf)
	}
	return out
}

// prefixPattern matches words that start with any of terms, so compounds
// like "crabmeat" and "buttercream" count. The match runs to the end of the
// word.
func prefixPattern(terms []string) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	for _, t := range sortByLengthDesc(terms) {
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\w*`)
}

func (d *Detector) families(constraint string) []compiledFamily {
	c := strings.ToLower(strings.TrimSpace(constraint))
	if c == "" {
		return nil
	}
	if fams, ok := d.cache[c]; ok {
		return fams
	}
	return compileFamilies(c, []family{{terms: []string{c}, freeOf: []string{c}, exclude: []string{c}}})
}

// match returns the first disallowed term in text, or "".
func (f compiledFamily) match(text string) string {
	if f.safe != nil {
		text = f.safe.ReplaceAllStringFunc(text, func(s string) string {
			return strings.Repeat(" ", len(s))
		})
	}
	return strings.ToLower(f.terms.FindString(text))
}

// Detect returns one Violation per ingredient line and constraint pair.
func (d *Detector) Detect(ingredients []string, constraints []string) []Violation {
	var violations []Violation
	for _, c := range constraints {
		for _, f := range d.families(c) {
			for _, ing := range ingredients {
				if term := f.match(ing); term != "" {
					violations = append(violations, Violation{Ingredient: ing, Constraint: f.constraint, Term: term})
				}
			}
		}
	}
	return dedupeViolations(violations)
}

// Mentions returns the first disallowed term found in text, or "". Used to
// screen search result titles and snippets.
func (d *Detector) Mentions(text string, constraints []string) string {
	for _, c := range constraints {
		for _, f := range d.families(c) {
			if term := f.match(text); term != "" {
				return term
			}
		}
	}
	return ""
}

// safeSpans returns the spans of text covered by a safe phrase for any of
// constraints.
func (d *Detector) safeSpans(text string, constraints []string) [][]int {
	var spans [][]int
	for _, c := range constraints {
		for _, f := range d.families(c) {
			if f.safe != nil {
				spans = append(spans, f.safe.FindAllStringIndex(text, -1)...)
			}
		}
	}
	return spans
}

// SearchExclusions returns up to limit disallowed terms suitable for search
// query exclusion.
func (d *Detector) SearchExclusions(constraints []string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range constraints {
		for _, f := range d.families(c) {
			for _, term := range f.exclude {
				if seen[term] {
					continue
				}
				if limit > 0 && len(out) >= limit {
					return out
				}
				seen[term] = true
				out = append(out, term)
			}
		}
	}
	return out
}

func dedupeViolations(vs []Violation) []Violation {
	if len(vs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(vs))
	out := vs[:0]
	for _, v := range vs {
		key := v.Ingredient + "\x00" + v.Constraint
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// IngredientViolation is returned when a recipe still contains disallowed
// ingredients after substitution.
type IngredientViolation struct {
	Violations []Violation
	// Unsubstituted is set when no substitution could be made at all.
	Unsubstituted bool
}

func (e *IngredientViolation) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%q (%s)", v.Term, v.Constraint))
	}
	if e.Unsubstituted {
		return "no substitution available for disallowed ingredients: " + strings.Join(parts, ", ")
	}
	return "disallowed ingredients remain after substitution: " + strings.Join(parts, ", ")
}

func sortByLengthDesc(terms []string) []string {
	out := append([]string(nil), terms...)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}
