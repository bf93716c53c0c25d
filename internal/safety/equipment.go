// Package safety enforces a user's equipment, allergen and dietary
// constraints on a structured recipe.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// equipment is a piece of specialty kitchen equipment and the ways recipes
// refer to it.
type equipment struct {
	name    string
	aliases []string
}

var equipmentVocabulary = []equipment{
	{"sous vide", []string{"sous vide", "sous-vide", "immersion circulator"}},
	{"stand mixer", []string{"stand mixer", "kitchenaid", "paddle attachment", "dough hook"}},
	{"food processor", []string{"food processor"}},
	{"blender", []string{"blender", "immersion blender", "stick blender", "vitamix"}},
	{"pressure cooker", []string{"pressure cooker", "instant pot", "instantpot", "multicooker"}},
	{"slow cooker", []string{"slow cooker", "crock pot", "crockpot", "crock-pot"}},
	{"air fryer", []string{"air fryer", "air-fryer", "airfryer"}},
	{"deep fryer", []string{"deep fryer", "deep-fryer"}},
	{"dutch oven", []string{"dutch oven"}},
	{"cast iron", []string{"cast iron", "cast-iron"}},
	{"wok", []string{"wok"}},
	{"grill", []string{"grill", "barbecue", "bbq", "grill pan"}},
	{"smoker", []string{"smoker", "pellet grill"}},
	{"rice cooker", []string{"rice cooker"}},
	{"waffle iron", []string{"waffle iron", "waffle maker"}},
	{"pasta machine", []string{"pasta machine", "pasta roller", "pasta maker"}},
	{"mandoline", []string{"mandoline", "mandolin slicer"}},
	{"spiralizer", []string{"spiralizer"}},
	{"kitchen torch", []string{"kitchen torch", "blowtorch", "blow torch", "culinary torch"}},
	{"candy thermometer", []string{"candy thermometer", "deep-fry thermometer"}},
	{"bread machine", []string{"bread machine", "bread maker"}},
	{"ice cream maker", []string{"ice cream maker", "ice-cream maker", "ice cream machine"}},
	{"dehydrator", []string{"dehydrator"}},
	{"microwave", []string{"microwave"}},
}

var equipmentPatterns = compileEquipment()

func compileEquipment() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(equipmentVocabulary))
	for i, e := range equipmentVocabulary {
		patterns[i] = wordPattern(e.aliases)
	}
	return patterns
}

// wordPattern matches any of terms as whole words, case-insensitively,
// allowing a plural suffix.
func wordPattern(terms []string) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	for _, t := range sortByLengthDesc(terms) {
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)(?:e?s)?\b`)
}

// EquipmentViolation is returned when a recipe needs equipment the user
// does not have.
type EquipmentViolation struct {
	Equipment []string
}

func (e *EquipmentViolation) Error() string {
	return fmt.Sprintf("recipe requires unavailable equipment: %s", strings.Join(e.Equipment, ", "))
}

// DetectEquipment returns the canonical names of the specialty equipment
// mentioned in the instructions.
func DetectEquipment(instructions []string) []string {
	text := strings.Join(instructions, "\n")
	var found []string
	for i, re := range equipmentPatterns {
		if re.MatchString(text) {
			found = append(found, equipmentVocabulary[i].name)
		}
	}
	return found
}

// EquipmentGate rejects recipes whose instructions need unavailable equipment.
// Ingredients are never inspected.
type EquipmentGate struct{}

// Check returns an *EquipmentViolation if any unavailable equipment is used.
// A vocabulary item matches an unavailable entry when either name contains
// the other. Entries that are not a vocabulary name are also matched
// literally, so "oven" catches "preheat the oven".
func (EquipmentGate) Check(instructions []string, unavailable []string) error {
	if len(unavailable) == 0 {
		return nil
	}

	text := strings.Join(instructions, "\n")
	var violations []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			violations = append(violations, name)
		}
	}

	for _, u := range unavailable {
		u = strings.ToLower(strings.TrimSpace(u))
		if u == "" {
			continue
		}
		exact := false
		for i, e := range equipmentVocabulary {
			if !overlaps(e, u) {
				continue
			}
			exact = exact || isNamed(e, u)
			if equipmentPatterns[i].MatchString(text) {
				add(e.name)
			}
		}
		if !exact && wordPattern([]string{u}).MatchString(text) {
			add(u)
		}
	}

	if len(violations) > 0 {
		return &EquipmentViolation{Equipment: violations}
	}
	return nil
}

func overlaps(e equipment, unavailable string) bool {
	for _, name := range append([]string{e.name}, e.aliases...) {
		if strings.Contains(name, unavailable) || strings.Contains(unavailable, name) {
			return true
		}
	}
	return false
}

func isNamed(e equipment, unavailable string) bool {
	if e.name == unavailable {
		return true
	}
	for _, a := range e.aliases {
		if a == unavailable {
			return true
		}
	}
	return false
}
