// Package classifier assigns a department category to a complaint by keyword matching.
package classifier

import "strings"

// FallbackCategory is returned when no keyword matches.
const FallbackCategory = "Other"

// Category is a department bucket and the keywords that route to it.
type Category struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Declaration order matters: the first matching category wins.
var categories = []Category{
	{ID: "sanitation", Name: "Sanitation", Keywords: []string{"garbage", "trash", "waste", "dirty", "smell", "dump"}},
	{ID: "roads", Name: "Roads & Infrastructure", Keywords: []string{"pothole", "road", "street", "crack", "pavement", "sidewalk", "bridge"}},
	{ID: "water", Name: "Water Supply", Keywords: []string{"water", "leak", "pipe", "tap", "supply", "drainage"}},
	{ID: "electricity", Name: "Electricity", Keywords: []string{"light", "electricity", "power", "streetlight", "lamp", "wire"}},
	{ID: "safety", Name: "Public Safety", Keywords: []string{"safety", "danger", "crime", "accident", "emergency"}},
	{ID: "other", Name: FallbackCategory, Keywords: []string{}},
}

// Classify returns the name of the first category with a keyword contained in description.
func Classify(description string) string {
	lower := strings.ToLower(description)
	for _, category := range categories {
		for _, keyword := range category.Keywords {
			if strings.Contains(lower, keyword) {
				return category.Name
			}
		}
	}
	return FallbackCategory
}

// Categories returns a copy of the category table in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, category := range categories {
		out[i] = Category{
			ID:       category.ID,
			Name:     category.Name,
			Keywords: append([]string{}, category.Keywords...),
		}
	}
	return out
}

// IsCategory reports whether name is one of the known category names.
func IsCategory(name string) bool {
	for _, category := range categories {
		if category.Name == name {
			return true
		}
	}
	return false
}
