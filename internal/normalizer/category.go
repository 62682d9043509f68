package normalizer

import "strings"

// CategoryStrategy assigns a category (and optional sub-category) to a
// product. Two strategies coexist: the fixed constant used by the batch
// upsert path and keyword inference over title and description.
type CategoryStrategy interface {
	Categorize(title, description string) (category, subCategory string)
}

// FixedCategory always returns the same category, the storefront's
// single catalog vertical.
type FixedCategory struct {
	Category string
}

func (s FixedCategory) Categorize(string, string) (string, string) {
	return s.Category, ""
}

// DefaultFixedCategory matches the baseline row transform.
func DefaultFixedCategory() FixedCategory {
	return FixedCategory{Category: "Jewelry"}
}

type keywordRule struct {
	keyword     string
	category    string
	subCategory string
}

// KeywordCategory infers category/sub-category from ordered keyword
// checks against title and description; the first match wins.
type KeywordCategory struct {
	rules []keywordRule
}

func NewKeywordCategory() *KeywordCategory {
	return &KeywordCategory{
		rules: []keywordRule{
			{"bracelet", "Jewelry", "Bracelets"},
			{"necklace", "Jewelry", "Necklaces"},
			{"pendant", "Jewelry", "Necklaces"},
			{"ring", "Jewelry", "Rings"},
			{"earring", "Jewelry", "Earrings"},
			{"anklet", "Jewelry", "Anklets"},
			{"lamp", "Home", "Lamps"},
			{"pyramid", "Home", "Carvings"},
			{"carving", "Home", "Carvings"},
			{"crystal", "Crystals", "Stones"},
			{"stone", "Crystals", "Stones"},
		},
	}
}

func (s *KeywordCategory) Categorize(title, description string) (string, string) {
	haystack := strings.ToLower(title + " " + description)
	for _, rule := range s.rules {
		if strings.Contains(haystack, rule.keyword) {
			return rule.category, rule.subCategory
		}
	}
	return "Jewelry", "Accessories"
}

// StrategyFor maps a configured strategy name to its implementation.
// Unknown names fall back to the fixed strategy.
func StrategyFor(name string) CategoryStrategy {
	if name == "keywords" {
		return NewKeywordCategory()
	}
	return DefaultFixedCategory()
}
