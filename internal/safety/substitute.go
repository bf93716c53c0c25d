package safety

import (
	"context"
	"regexp"
	"strings"

	"github.com/windoze95/saltybytes-resolver/internal/models"
)

// IngredientSubstituter replaces disallowed ingredients in a recipe. It
// returns a new recipe and never modifies its input.
type IngredientSubstituter interface {
	Substitute(ctx context.Context, recipe *models.RecipeData, violations []Violation, constraints []string) (*models.RecipeData, error)
}

// ruleReplacements lists safe alternatives per disallowed term, in order of
// preference. The first option that breaks none of the constraints is used.
var ruleReplacements = map[string][]string{
	// dairy
	"milk":          {"oat milk", "rice milk"},
	"butter":        {"olive oil", "vegan butter"},
	"buttermilk":    {"oat milk with lemon juice"},
	"cream":         {"coconut cream", "oat milk"},
	"heavy cream":   {"coconut cream"},
	"sour cream":    {"coconut yogurt"},
	"cheese":        {"nutritional yeast"},
	"parmesan":      {"nutritional yeast"},
	"mozzarella":    {"vegan mozzarella"},
	"cheddar":       {"vegan cheddar"},
	"feta":          {"vegan feta"},
	"ricotta":       {"vegan ricotta"},
	"yogurt":        {"coconut yogurt"},
	"yoghurt":       {"coconut yogurt"},
	"ghee":          {"coconut oil", "olive oil"},
	"paneer":        {"extra-firm tofu", "chickpeas"},
	"half-and-half": {"oat milk"},

	// gluten
	"flour":             {"gluten-free flour"},
	"all-purpose flour": {"gluten-free all-purpose flour"},
	"wheat":             {"gluten-free flour"},
	"bread":             {"gluten-free bread"},
	"breadcrumbs":       {"gluten-free breadcrumbs"},
	"bread crumbs":      {"gluten-free breadcrumbs"},
	"panko":             {"gluten-free panko"},
	"pasta":             {"gluten-free pasta"},
	"spaghetti":         {"gluten-free spaghetti"},
	"macaroni":          {"gluten-free macaroni"},
	"noodles":           {"rice noodles"},
	"couscous":          {"quinoa"},
	"bulgur":            {"quinoa"},
	"barley":            {"brown rice"},
	"tortilla":          {"corn tortilla"},
	"cracker":           {"rice cracker"},
	"soy sauce":         {"tamari", "coconut aminos"},

	// egg
	"egg":        {"flax egg"},
	"mayonnaise": {"vegan mayonnaise"},
	"mayo":       {"vegan mayo"},

	// soy
	"tofu":    {"chickpeas"},
	"tempeh":  {"chickpeas"},
	"edamame": {"green peas"},
	"miso":    {"white bean paste"},
	"tamari":  {"coconut aminos"},

	// shellfish and fish
	"shrimp":         {"king oyster mushroom", "firm tofu", "chickpeas"},
	"prawn":          {"king oyster mushroom", "firm tofu", "chickpeas"},
	"scallop":        {"king oyster mushroom"},
	"squid":          {"king oyster mushroom"},
	"calamari":       {"king oyster mushroom"},
	"lobster":        {"king oyster mushroom"},
	"crab":           {"hearts of palm"},
	"clam":           {"shiitake mushroom"},
	"mussel":         {"shiitake mushroom"},
	"oyster sauce":   {"mushroom stir-fry sauce"},
	"shrimp paste":   {"white bean paste", "salt"},
	"saeujeot":       {"salt"},
	"fish sauce":     {"soy sauce", "coconut aminos", "salt"},
	"anchovy":        {"capers"},
	"anchovies":      {"capers"},
	"fish":           {"firm tofu", "chickpeas"},
	"salmon":         {"firm tofu", "chickpeas"},
	"tuna":           {"chickpeas"},
	"cod":            {"firm tofu", "cauliflower"},
	"dashi":          {"kombu broth"},
	"bonito":         {"dried shiitake"},
	"worcestershire": {"coconut aminos"},

	// meat
	"chicken broth": {"vegetable broth"},
	"chicken stock": {"vegetable stock"},
	"beef broth":    {"mushroom broth"},
	"beef stock":    {"mushroom stock"},
	"bone broth":    {"vegetable broth"},
	"pork belly":    {"shiitake mushrooms", "firm tofu"},
	"pork":          {"chicken thigh", "shiitake mushrooms", "firm tofu"},
	"beef":          {"portobello mushrooms", "lentils"},
	"ground beef":   {"ground turkey", "lentils"},
	"chicken":       {"firm tofu", "chickpeas"},
	"turkey":        {"firm tofu", "chickpeas"},
	"lamb":          {"portobello mushrooms", "lentils"},
	"bacon":         {"turkey bacon", "smoked mushrooms"},
	"ham":           {"smoked turkey", "smoked tofu", "smoked mushrooms"},
	"sausage":       {"chicken sausage", "vegan sausage"},
	"chorizo":       {"vegan chorizo"},
	"pepperoni":     {"vegan pepperoni"},
	"lard":          {"vegetable shortening"},
	"gelatin":       {"agar agar"},
	"gelatine":      {"agar agar"},
	"meat":          {"mushrooms"},
	"steak":         {"portobello mushroom"},

	// nuts, peanuts, sesame
	"almond":        {"sunflower seed"},
	"walnut":        {"pumpkin seed"},
	"pecan":         {"pumpkin seed"},
	"cashew":        {"sunflower seed"},
	"pistachio":     {"pumpkin seed"},
	"hazelnut":      {"sunflower seed"},
	"pine nut":      {"sunflower seed"},
	"nut":           {"toasted seeds"},
	"peanut butter": {"sunflower seed butter"},
	"peanut":        {"roasted chickpeas"},
	"peanut oil":    {"vegetable oil"},
	"sesame oil":    {"neutral oil"},
	"sesame seed":   {"hemp seed"},
	"sesame":        {"hemp seed"},
	"tahini":        {"sunflower seed butter"},

	// other
	"honey": {"maple syrup", "agave syrup"},
	"wine":  {"grape juice with a splash of vinegar"},
	"mirin": {"rice vinegar with sugar"},
	"sake":  {"rice vinegar"},
	"beer":  {"vegetable broth"},
}

// RuleSubstituter replaces disallowed ingredients from a fixed table.
type RuleSubstituter struct {
	detector *Detector
}

// NewRuleSubstituter creates a RuleSubstituter that validates each
// replacement with detector.
func NewRuleSubstituter(detector *Detector) *RuleSubstituter {
	return &RuleSubstituter{detector: detector}
}

// Substitute replaces every ingredient it has a safe alternative for. Lines
// without one are left as they are.
func (s *RuleSubstituter) Substitute(_ context.Context, recipe *models.RecipeData, violations []Violation, constraints []string) (*models.RecipeData, error) {
	out := recipe.Clone()
	if len(violations) == 0 {
		return out, nil
	}

	replaced := make(map[string]bool)
	for i, line := range out.Ingredients {
		recorded := make(map[string]bool)
		// Bounded so a replacement that keeps matching cannot loop.
		for attempt := 0; attempt < 4; attempt++ {
			found := s.detector.Detect([]string{line}, constraints)
			if len(found) == 0 {
				break
			}
			v := found[0]
			key, replacement, newLine, ok := s.replace(line, v.Term, constraints)
			if !ok {
				break
			}
			if !recorded[key] {
				recorded[key] = true
				out.Substitutions = append(out.Substitutions, models.SubstitutionRecord{
					Original:    v.Term,
					Replacement: replacement,
					Reason:      v.Constraint,
				})
			}
			if !replaced[key] {
				replaced[key] = true
				for j, step := range out.Instructions {
					out.Instructions[j] = replaceTerm(step, key, replacement, s.detector.safeSpans(step, constraints))
				}
			}
			line = newLine
		}
		out.Ingredients[i] = line
	}

	return out, nil
}

// replace finds the first option for term that breaks none of the
// constraints and applies it to line.
func (s *RuleSubstituter) replace(line, term string, constraints []string) (string, string, string, bool) {
	key, options, ok := lookupReplacements(term)
	if !ok {
		return "", "", "", false
	}
	for _, option := range options {
		if s.detector.Mentions(option, constraints) != "" {
			continue
		}
		if newLine := replaceTerm(line, key, option, s.detector.safeSpans(line, constraints)); newLine != line {
			return key, option, newLine, true
		}
	}
	return "", "", "", false
}

// lookupReplacements finds the table entry for a matched term, which may be
// plural.
func lookupReplacements(term string) (string, []string, bool) {
	term = strings.ToLower(term)
	for _, key := range []string{term, strings.TrimSuffix(term, "es"), strings.TrimSuffix(term, "s")} {
		if options, ok := ruleReplacements[key]; ok {
			return key, options, true
		}
	}
	return "", nil, false
}

// replaceTerm replaces whole-word occurrences of key and its plural in text.
// A plural match gets a plural replacement. Matches inside a protected span
// or inside an earlier replacement are left alone.
func replaceTerm(text, key, replacement string, protected [][]int) string {
	protected = append(protected, pluralPattern(replacement).FindAllStringIndex(text, -1)...)

	var b strings.Builder
	last := 0
	for _, m := range pluralPattern(key).FindAllStringIndex(text, -1) {
		if covered(m, protected) {
			continue
		}
		b.WriteString(text[last:m[0]])
		if m[1]-m[0] > len(key) && !strings.HasSuffix(replacement, "s") {
			b.WriteString(replacement + "s")
		} else {
			b.WriteString(replacement)
		}
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

func pluralPattern(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `(?:e?s)?\b`)
}

// covered reports whether span overlaps any of spans.
func covered(span []int, spans [][]int) bool {
	for _, s := range spans {
		if span[0] < s[1] && s[0] < span[1] {
			return true
		}
	}
	return false
}
