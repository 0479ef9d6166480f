package models

import "time"

// Sticker is one decoration slot on an item. All optional attributes are
// pointers because the game coordinator omits fields it considers default.
type Sticker struct {
	Slot      int      `json:"slot"`
	StickerID int      `json:"sticker_id"`
	Wear      *float64 `json:"wear,omitempty"`
	Scale     *float64 `json:"scale,omitempty"`
	Rotation  *float64 `json:"rotation,omitempty"`
	TintID    *int     `json:"tint_id,omitempty"`
	OffsetX   *float64 `json:"offset_x,omitempty"`
	OffsetY   *float64 `json:"offset_y,omitempty"`
	OffsetZ   *float64 `json:"offset_z,omitempty"`
	Pattern   *int     `json:"pattern,omitempty"`

	// Name is filled by the formatter from the item schema; it is never
	// persisted.
	Name string `json:"name,omitempty"`
}

// Keychain shares the sticker wire shape; kept as its own type so the two
// arrays cannot be mixed up at call sites.
type Keychain struct {
	Slot      int      `json:"slot"`
	StickerID int      `json:"sticker_id"`
	Pattern   *int     `json:"pattern,omitempty"`
	OffsetX   *float64 `json:"offset_x,omitempty"`
	OffsetY   *float64 `json:"offset_y,omitempty"`
	OffsetZ   *float64 `json:"offset_z,omitempty"`

	Name string `json:"name,omitempty"`
}

// Asset is a known item instance. asset_id is the primary key; unique_id is
// the 8-hex content hash over the nine identity fields (see internal/identity).
type Asset struct {
	AssetID  int64  `json:"asset_id"`
	UniqueID string `json:"unique_id"`

	// Ms is the owner steam-id or market-listing id. Stored signed in
	// Postgres, reinterpreted as unsigned in Go.
	Ms uint64 `json:"ms"`
	D  string `json:"d"`

	PaintSeed  *int     `json:"paint_seed,omitempty"`
	PaintIndex *int     `json:"paint_index,omitempty"`
	PaintWear  *float64 `json:"paint_wear,omitempty"`

	DefIndex   int     `json:"def_index"`
	Quality    *int    `json:"quality,omitempty"`
	Rarity     *int    `json:"rarity,omitempty"`
	Origin     *int    `json:"origin,omitempty"`
	CustomName *string `json:"custom_name,omitempty"`
	QuestID    *int    `json:"quest_id,omitempty"`
	Reason     *int    `json:"reason,omitempty"`
	MusicIndex *int    `json:"music_index,omitempty"`
	EntIndex   *int    `json:"ent_index,omitempty"`

	IsStattrak bool `json:"is_stattrak"`
	IsSouvenir bool `json:"is_souvenir"`

	Stickers  []Sticker  `json:"stickers"`
	Keychains []Keychain `json:"keychains"`

	KilleaterScoreType *int `json:"killeater_score_type,omitempty"`
	KilleaterValue     *int `json:"killeater_value,omitempty"`
	PetIndex           *int `json:"pet_index,omitempty"`
	Inventory          *int `json:"inventory,omitempty"`
	DropReason         *int `json:"drop_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// History record types. Numbering is part of the stored contract.
const (
	HistoryTypeTrade           = 1
	HistoryTypeMarketListing   = 2
	HistoryTypeMarketBuy       = 3
	HistoryTypeMarketRelisting = 4
	HistoryTypeStickerApply    = 5
	HistoryTypeStickerRemove   = 6
	HistoryTypeStickerChange   = 7
	HistoryTypeUnboxed         = 8
	HistoryTypeKeychainChange  = 9
)

// History is one observed ownership/decoration transition of an asset.
type History struct {
	ID            int64      `json:"id"`
	UniqueID      string     `json:"unique_id"`
	Type          int        `json:"type"`
	AssetID       int64      `json:"asset_id"`
	PrevAssetID   int64      `json:"prev_asset_id"`
	Ms            uint64     `json:"ms"`
	PrevMs        uint64     `json:"prev_ms"`
	Stickers      []Sticker  `json:"stickers"`
	PrevStickers  []Sticker  `json:"prev_stickers"`
	Keychains     []Keychain `json:"keychains"`
	PrevKeychains []Keychain `json:"prev_keychains"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Ranking is one row of the materialized wear-ranking view, read by unique_id.
type Ranking struct {
	UniqueID   string `json:"unique_id"`
	LowRank    int    `json:"low_rank"`
	HighRank   int    `json:"high_rank"`
	GlobalLow  int    `json:"global_low"`
	GlobalHigh int    `json:"global_high"`
	TotalCount int    `json:"total_count"`
}
