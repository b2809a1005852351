package core

import "regexp"

// MatchCategory tests an expense description against every subcategory
// matchText pattern and returns the ids of the matching category and
// subcategory. Patterns are case-insensitive regular expressions. The walk is
// exhaustive and the last match wins: a pattern later in iteration order
// overrides an earlier hit. Patterns that fail to compile are ignored.
func MatchCategory(description string, categories []Category) (categoryID, subcategoryID string, ok bool) {
	if description == "" {
		return "", "", false
	}
	for _, cat := range categories {
		for _, sub := range cat.Subcategories {
			for _, text := range sub.MatchText {
				if text == "" {
					continue
				}
				re, err := regexp.Compile("(?i)" + text)
				if err != nil {
					continue
				}
				if re.MatchString(description) {
					categoryID = cat.ID
					subcategoryID = sub.ID
					ok = true
				}
			}
		}
	}
	return categoryID, subcategoryID, ok
}
