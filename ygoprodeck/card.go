package ygoprodeck

import "strings"

// Card is a single card record as returned by the cardinfo endpoint.
// Fields that are absent from the payload decode to their zero value,
// an Id of 0 or an empty Name means the field was missing.
type Card struct {
	Id        int    `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	FrameType string `json:"frameType"`
	Desc      string `json:"desc"`
	Race      string `json:"race"`
	Archetype string `json:"archetype"`
	Attribute string `json:"attribute"`
	Atk       *int   `json:"atk,omitempty"`
	Def       *int   `json:"def,omitempty"`
	Level     *int   `json:"level,omitempty"`

	CardSets   []CardSet   `json:"card_sets"`
	CardImages []CardImage `json:"card_images"`
	CardPrices []CardPrice `json:"card_prices"`
}

// CardSet is one print appearance of a card.
type CardSet struct {
	SetName       string `json:"set_name"`
	SetCode       string `json:"set_code"`
	SetRarity     string `json:"set_rarity"`
	SetRarityCode string `json:"set_rarity_code"`
	SetPrice      string `json:"set_price"`
}

type CardImage struct {
	Id              int    `json:"id"`
	ImageURL        string `json:"image_url"`
	ImageURLSmall   string `json:"image_url_small"`
	ImageURLCropped string `json:"image_url_cropped"`
}

// CardPrice holds the card-level market prices, all values are strings
// formatted as decimal USD amounts.
type CardPrice struct {
	CardmarketPrice   string `json:"cardmarket_price"`
	TCGPlayerPrice    string `json:"tcgplayer_price"`
	EbayPrice         string `json:"ebay_price"`
	AmazonPrice       string `json:"amazon_price"`
	CoolstuffincPrice string `json:"coolstuffinc_price"`
}

// Response is the envelope of every cardinfo reply.
type Response struct {
	Data []Card `json:"data"`
}

// InSet returns a copy of the card keeping only the print appearances
// from the named set.
func (c Card) InSet(setName string) Card {
	var sets []CardSet
	for _, set := range c.CardSets {
		if strings.EqualFold(set.SetName, setName) {
			sets = append(sets, set)
		}
	}
	c.CardSets = sets
	return c
}
