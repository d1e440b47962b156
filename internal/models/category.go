package models

import "strings"

// Category is one of the five fixed VESPA learning-disposition dimensions.
type Category string

const (
	CategoryVision   Category = "vision"
	CategoryEffort   Category = "effort"
	CategorySystems  Category = "systems"
	CategoryPractice Category = "practice"
	CategoryAttitude Category = "attitude"
)

// Categories lists the five VESPA categories in their canonical order.
func Categories() []Category {
	return []Category{CategoryVision, CategoryEffort, CategorySystems, CategoryPractice, CategoryAttitude}
}

// ParseCategory normalizes a raw category label. The second return value is
// false for labels outside the five fixed categories.
func ParseCategory(raw string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryVision:
		return CategoryVision, true
	case CategoryEffort:
		return CategoryEffort, true
	case CategorySystems:
		return CategorySystems, true
	case CategoryPractice:
		return CategoryPractice, true
	case CategoryAttitude:
		return CategoryAttitude, true
	default:
		return "", false
	}
}

// VESPAScores holds the five per-category scores on a 0-10 scale.
// Missing scores default to zero.
type VESPAScores struct {
	Vision   float64 `json:"vision"`
	Effort   float64 `json:"effort"`
	Systems  float64 `json:"systems"`
	Practice float64 `json:"practice"`
	Attitude float64 `json:"attitude"`
}
