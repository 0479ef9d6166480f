package models

// StickerPayload is a sticker/keychain record as the game coordinator sends
// it, before normalization into the stored shape.
type StickerPayload struct {
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
}

// ItemPayload is the raw inspect reply from the game coordinator. PaintWear
// carries the untranslated 32-bit integer; internal/identity reinterprets it
// as an IEEE-754 single.
type ItemPayload struct {
	AccountID          *uint32          `json:"accountid,omitempty"`
	ItemID             uint64           `json:"itemid"`
	DefIndex           uint32           `json:"defindex"`
	PaintIndex         *uint32          `json:"paintindex,omitempty"`
	Rarity             *uint32          `json:"rarity,omitempty"`
	Quality            *uint32          `json:"quality,omitempty"`
	PaintWear          *uint32          `json:"paintwear,omitempty"`
	PaintSeed          *uint32          `json:"paintseed,omitempty"`
	KilleaterScoreType *uint32          `json:"killeaterscoretype,omitempty"`
	KilleaterValue     *uint32          `json:"killeatervalue,omitempty"`
	CustomName         *string          `json:"customname,omitempty"`
	Stickers           []StickerPayload `json:"stickers,omitempty"`
	Keychains          []StickerPayload `json:"keychains,omitempty"`
	Inventory          *uint32          `json:"inventory,omitempty"`
	Origin             *uint32          `json:"origin,omitempty"`
	QuestID            *uint32          `json:"questid,omitempty"`
	DropReason         *uint32          `json:"dropreason,omitempty"`
	MusicIndex         *uint32          `json:"musicindex,omitempty"`
	EntIndex           *int32           `json:"entindex,omitempty"`
	PetIndex           *uint32          `json:"petindex,omitempty"`
}
