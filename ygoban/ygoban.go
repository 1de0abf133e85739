// Package ygoban flattens YGOPRODeck card records into tabular rows,
// exports them to CSV or NDJSON, and loads them into a SQL database.
package ygoban

// Row is a single (card, print appearance) pair
type Row struct {
	// Unique identifier of the row, composed of card id, set code and
	// rarity, or just the card id for cards without any appearance
	Key string `json:"key"`

	// Card identifier, shared by all the rows of the same card
	CardId int `json:"card_id"`

	Name        string `json:"name"`
	Type        string `json:"type"`
	Archetype   string `json:"archetype,omitempty"`
	Description string `json:"description"`

	// Print appearance fields, empty when the card has no appearance
	SetName string `json:"set_name,omitempty"`
	SetCode string `json:"set_code,omitempty"`
	Rarity  string `json:"rarity,omitempty"`

	// The price of this appearance, in USD
	Price float64 `json:"price"`

	ImageURL      string `json:"image_url,omitempty"`
	SmallImageURL string `json:"small_image_url,omitempty"`
}

// The canonical header present in all exported files, in column order
var Header = []string{
	"Key", "Id", "Name", "Type", "Archetype", "Description", "Set Name", "Set Code", "Rarity", "Price", "Image URL", "Small Image URL",
}

type LogCallbackFunc func(format string, a ...interface{})
