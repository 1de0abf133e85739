package ygoban

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mtgban/go-ygoban/ygoprodeck"
)

// SchemaError is returned when a card record lacks a required field, or
// when a field cannot be interpreted.
type SchemaError struct {
	CardId int
	Name   string
	Field  string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("card %d %q: invalid %s: %v", e.CardId, e.Name, e.Field, e.Err)
	}
	return fmt.Sprintf("card %d %q: missing required field %s", e.CardId, e.Name, e.Field)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// RowKey builds the unique identifier of a row. Rarity is folded to lower
// case with spaces removed, so "Ultra Rare" becomes "ultrarare".
func RowKey(cardId int, setCode, rarity string) string {
	if setCode == "" && rarity == "" {
		return strconv.Itoa(cardId)
	}
	rarityKey := cases.Lower(language.Und).String(rarity)
	rarityKey = strings.ReplaceAll(rarityKey, " ", "")
	return fmt.Sprintf("%d-%s-%s", cardId, setCode, rarityKey)
}

func parsePrice(price string) (float64, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return 0, nil
	}
	return strconv.ParseFloat(price, 64)
}

// NormalizeCard flattens a card into one row per print appearance, in the
// order they are listed. A card without appearances yields a single row
// with empty appearance fields.
func NormalizeCard(card ygoprodeck.Card) ([]Row, error) {
	if card.Id == 0 {
		return nil, &SchemaError{Name: card.Name, Field: "id"}
	}
	if card.Name == "" {
		return nil, &SchemaError{CardId: card.Id, Field: "name"}
	}

	base := Row{
		CardId:      card.Id,
		Name:        card.Name,
		Type:        card.Type,
		Archetype:   card.Archetype,
		Description: card.Desc,
	}
	if len(card.CardImages) > 0 {
		base.ImageURL = card.CardImages[0].ImageURL
		base.SmallImageURL = card.CardImages[0].ImageURLSmall
	}

	if len(card.CardSets) == 0 {
		base.Key = RowKey(card.Id, "", "")
		return []Row{base}, nil
	}

	// Sets without a listed price use the TCGplayer market price
	var fallback float64
	if len(card.CardPrices) > 0 {
		var err error
		fallback, err = parsePrice(card.CardPrices[0].TCGPlayerPrice)
		if err != nil {
			return nil, &SchemaError{CardId: card.Id, Name: card.Name, Field: "tcgplayer_price", Err: err}
		}
	}

	rows := make([]Row, 0, len(card.CardSets))
	for _, set := range card.CardSets {
		price, err := parsePrice(set.SetPrice)
		if err != nil {
			return nil, &SchemaError{CardId: card.Id, Name: card.Name, Field: "set_price", Err: err}
		}
		if price == 0 {
			price = fallback
		}

		row := base
		row.Key = RowKey(card.Id, set.SetCode, set.SetRarity)
		row.SetName = set.SetName
		row.SetCode = set.SetCode
		row.Rarity = set.SetRarity
		row.Price = price
		rows = append(rows, row)
	}

	return rows, nil
}

// Normalize flattens all the cards, stopping at the first invalid record.
func Normalize(cards []ygoprodeck.Card) ([]Row, error) {
	var rows []Row
	for _, card := range cards {
		cardRows, err := NormalizeCard(card)
		if err != nil {
			return nil, err
		}
		rows = append(rows, cardRows...)
	}
	return rows, nil
}
