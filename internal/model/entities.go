package model

// Space is a top-level container owned by one user.
type Space struct {
	SyncMeta
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	IsHidden bool   `json:"isHidden"`
	Order    int    `json:"order"`
}

func (*Space) Kind() EntityType { return EntitySpaces }

// Category groups items inside a space.
type Category struct {
	SyncMeta
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	IsHidden bool   `json:"isHidden"`
	Order    int    `json:"order"`
	SpaceID  string `json:"spaceId"`
}

func (*Category) Kind() EntityType { return EntityCategories }

// Item is a single list entry. CategoryID is nil for uncategorised items.
type Item struct {
	SyncMeta
	Text        string  `json:"text"`
	IsCompleted bool    `json:"isCompleted"`
	ImageURL    string  `json:"imageUrl"`
	Description string  `json:"description"`
	Order       int     `json:"order"`
	SpaceID     string  `json:"spaceId"`
	CategoryID  *string `json:"categoryId"`
}

func (*Item) Kind() EntityType { return EntityItems }

// Preferences is a per-user singleton. Its ID is always the owner's user ID.
type Preferences struct {
	SyncMeta
	IsDarkMode bool   `json:"isDarkMode"`
	ThemeColor string `json:"themeColor"`
}

func (*Preferences) Kind() EntityType { return EntityPreferences }

// DefaultThemeColor is used when preferences are seeded for a new user.
const DefaultThemeColor = "#6750A4"

// compile-time checks that every entity is a Record
var (
	_ Record = (*Space)(nil)
	_ Record = (*Category)(nil)
	_ Record = (*Item)(nil)
	_ Record = (*Preferences)(nil)
)
