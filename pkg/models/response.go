package models

// InspectResponse is the JSON body returned on a successful inspect.
type InspectResponse struct {
	ItemInfo *ItemInfo `json:"iteminfo"`
}

// ItemInfo is the formatted, schema-enriched view of an asset.
type ItemInfo struct {
	AssetID  string `json:"asset_id"`
	UniqueID string `json:"unique_id"`

	DefIndex   int `json:"defindex"`
	PaintIndex int `json:"paintindex"`
	PaintSeed  int `json:"paintseed"`
	Quality    int `json:"quality"`
	Rarity     int `json:"rarity"`
	Origin     int `json:"origin"`

	// FloatValue is absent for special items (stickers, graffiti, agents).
	FloatValue *float64 `json:"floatvalue,omitempty"`

	// Type is set for non-weapon items: Sticker, Graffiti, Keychain,
	// Agent or Unknown.
	Type string `json:"type,omitempty"`

	WeaponName     string `json:"weapon_name,omitempty"`
	PaintName      string `json:"paint_name,omitempty"`
	WearName       string `json:"wear_name,omitempty"`
	Phase          string `json:"phase,omitempty"`
	PatternName    string `json:"pattern_name,omitempty"`
	MarketHashName string `json:"market_hash_name"`
	CustomName     string `json:"custom_name,omitempty"`

	IsStattrak bool `json:"stattrak"`
	IsSouvenir bool `json:"souvenir"`

	Stickers  []Sticker  `json:"stickers"`
	Keychains []Keychain `json:"keychains"`

	LowRank    *int `json:"low_rank,omitempty"`
	HighRank   *int `json:"high_rank,omitempty"`
	TotalCount *int `json:"total_count,omitempty"`
}
