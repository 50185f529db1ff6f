package domain

import "slices"

// AllowedCategories lists the category titles the explorer offers, in no
// particular order. The rendered list follows upstream order instead.
var AllowedCategories = []string{"Sea and Lake Ice", "Volcanoes", "Wildfires"}

// Category is a named class of natural event with its own event-list endpoint.
type Category struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// IconPath is the static asset path of the category's list icon.
func (c Category) IconPath() string {
	return "assets/img/categories/" + c.ID + ".png"
}

// FilterCategories keeps the categories whose title is in the allow-list,
// preserving input order.
func FilterCategories(categories []Category) []Category {
	out := make([]Category, 0, len(AllowedCategories))
	for _, c := range categories {
		if slices.Contains(AllowedCategories, c.Title) {
			out = append(out, c)
		}
	}
	return out
}
