package sqlstore

import "github.com/sakif/spacesync/internal/model"

// The "order" field lives in sort_order because ORDER is a reserved word.

var spaceSchema = schema[*model.Space]{
	table:     "spaces",
	columns:   []string{"name", "icon", "is_hidden", "sort_order"},
	newRecord: func() *model.Space { return &model.Space{} },
	values: func(s *model.Space) []any {
		return []any{s.Name, s.Icon, s.IsHidden, s.Order}
	},
	dest: func(s *model.Space) []any {
		return []any{&s.Name, &s.Icon, &s.IsHidden, &s.Order}
	},
}

var categorySchema = schema[*model.Category]{
	table:     "categories",
	columns:   []string{"name", "icon", "is_hidden", "sort_order", "space_id"},
	newRecord: func() *model.Category { return &model.Category{} },
	values: func(c *model.Category) []any {
		return []any{c.Name, c.Icon, c.IsHidden, c.Order, c.SpaceID}
	},
	dest: func(c *model.Category) []any {
		return []any{&c.Name, &c.Icon, &c.IsHidden, &c.Order, &c.SpaceID}
	},
}

// category_id is nullable: a nil *string is written as NULL, and Scan into
// **string sets the pointer back to nil for NULL.
var itemSchema = schema[*model.Item]{
	table: "items",
	columns: []string{
		"text", "is_completed", "image_url", "description", "sort_order", "space_id", "category_id",
	},
	newRecord: func() *model.Item { return &model.Item{} },
	values: func(it *model.Item) []any {
		return []any{it.Text, it.IsCompleted, it.ImageURL, it.Description, it.Order, it.SpaceID, it.CategoryID}
	},
	dest: func(it *model.Item) []any {
		return []any{&it.Text, &it.IsCompleted, &it.ImageURL, &it.Description, &it.Order, &it.SpaceID, &it.CategoryID}
	},
}

var preferencesSchema = schema[*model.Preferences]{
	table:     "preferences",
	columns:   []string{"is_dark_mode", "theme_color"},
	newRecord: func() *model.Preferences { return &model.Preferences{} },
	values: func(p *model.Preferences) []any {
		return []any{p.IsDarkMode, p.ThemeColor}
	},
	dest: func(p *model.Preferences) []any {
		return []any{&p.IsDarkMode, &p.ThemeColor}
	},
}
