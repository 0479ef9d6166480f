package inspect

import (
	"github.com/rawblock/inspect-gateway/internal/identity"
	"github.com/rawblock/inspect-gateway/pkg/models"
)

// normalizeAsset translates a raw coordinator payload into the stored asset
// shape: wear bits become a float, every optional uint32 becomes a nullable
// int, and the content hash is computed over the nine identity fields.
func normalizeAsset(item *models.ItemPayload, ms uint64, d string) *models.Asset {
	asset := &models.Asset{
		AssetID:  int64(item.ItemID),
		Ms:       ms,
		D:        d,
		DefIndex: int(item.DefIndex),

		PaintSeed:          intPtr(item.PaintSeed),
		PaintIndex:         intPtr(item.PaintIndex),
		Quality:            intPtr(item.Quality),
		Rarity:             intPtr(item.Rarity),
		Origin:             intPtr(item.Origin),
		QuestID:            intPtr(item.QuestID),
		DropReason:         intPtr(item.DropReason),
		MusicIndex:         intPtr(item.MusicIndex),
		KilleaterScoreType: intPtr(item.KilleaterScoreType),
		KilleaterValue:     intPtr(item.KilleaterValue),
		PetIndex:           intPtr(item.PetIndex),
		Inventory:          intPtr(item.Inventory),
		CustomName:         item.CustomName,

		Stickers:  normalizeStickers(item.Stickers),
		Keychains: normalizeKeychains(item.Keychains),
	}
	if item.EntIndex != nil {
		v := int(*item.EntIndex)
		asset.EntIndex = &v
	}
	if item.PaintWear != nil {
		wear := identity.WearFromBits(*item.PaintWear)
		asset.PaintWear = &wear
	}

	asset.IsStattrak = item.KilleaterValue != nil
	asset.IsSouvenir = item.Quality != nil && *item.Quality == 12

	asset.UniqueID = identity.UniqueID(identity.Tuple{
		PaintSeed:  asset.PaintSeed,
		PaintIndex: asset.PaintIndex,
		PaintWear:  asset.PaintWear,
		DefIndex:   &asset.DefIndex,
		Origin:     asset.Origin,
		Rarity:     asset.Rarity,
		QuestID:    asset.QuestID,
		Quality:    asset.Quality,
		DropReason: asset.DropReason,
	})
	return asset
}

func normalizeStickers(raw []models.StickerPayload) []models.Sticker {
	out := make([]models.Sticker, len(raw))
	for i, s := range raw {
		out[i] = models.Sticker{
			Slot:      s.Slot,
			StickerID: s.StickerID,
			Wear:      s.Wear,
			Scale:     s.Scale,
			Rotation:  s.Rotation,
			TintID:    s.TintID,
			OffsetX:   s.OffsetX,
			OffsetY:   s.OffsetY,
			OffsetZ:   s.OffsetZ,
			Pattern:   s.Pattern,
		}
	}
	return out
}

func normalizeKeychains(raw []models.StickerPayload) []models.Keychain {
	out := make([]models.Keychain, len(raw))
	for i, k := range raw {
		out[i] = models.Keychain{
			Slot:      k.Slot,
			StickerID: k.StickerID,
			Pattern:   k.Pattern,
			OffsetX:   k.OffsetX,
			OffsetY:   k.OffsetY,
			OffsetZ:   k.OffsetZ,
		}
	}
	return out
}

// buildHistory compares a fresh observation against the prior latest one for
// the same content hash and, when they differ, returns the transition row to
// append. Nil means nothing changed worth recording.
func buildHistory(prev, cur *models.Asset) *models.History {
	if prev == nil {
		return nil
	}
	histType := inferHistoryType(prev, cur)
	if histType == 0 {
		return nil
	}
	return &models.History{
		UniqueID:      cur.UniqueID,
		Type:          histType,
		AssetID:       cur.AssetID,
		PrevAssetID:   prev.AssetID,
		Ms:            cur.Ms,
		PrevMs:        prev.Ms,
		Stickers:      cur.Stickers,
		PrevStickers:  prev.Stickers,
		Keychains:     cur.Keychains,
		PrevKeychains: prev.Keychains,
	}
}

// marketListingFloor: market listing ids live far above the steam id range.
const marketListingFloor = 99999999999999999

func inferHistoryType(prev, cur *models.Asset) int {
	ownerChanged := prev.Ms != cur.Ms
	prevIsListing := prev.Ms > marketListingFloor
	curIsListing := cur.Ms > marketListingFloor

	switch {
	case ownerChanged && curIsListing && prevIsListing:
		return models.HistoryTypeMarketRelisting
	case ownerChanged && curIsListing:
		return models.HistoryTypeMarketListing
	case ownerChanged && prevIsListing:
		return models.HistoryTypeMarketBuy
	case ownerChanged:
		return models.HistoryTypeTrade
	}

	switch {
	case len(cur.Stickers) > len(prev.Stickers):
		return models.HistoryTypeStickerApply
	case len(cur.Stickers) < len(prev.Stickers):
		return models.HistoryTypeStickerRemove
	case !stickersEqual(prev.Stickers, cur.Stickers):
		return models.HistoryTypeStickerChange
	case !keychainsEqual(prev.Keychains, cur.Keychains):
		return models.HistoryTypeKeychainChange
	}
	return 0
}

func stickersEqual(a, b []models.Sticker) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Slot != b[i].Slot || a[i].StickerID != b[i].StickerID {
			return false
		}
		if !floatPtrEqual(a[i].Wear, b[i].Wear) {
			return false
		}
	}
	return true
}

func keychainsEqual(a, b []models.Keychain) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Slot != b[i].Slot || a[i].StickerID != b[i].StickerID {
			return false
		}
	}
	return true
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtr(v *uint32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
