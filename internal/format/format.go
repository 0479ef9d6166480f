// Package format turns a stored asset plus the loaded item schema into the
// response object served to clients. Everything here is pure: no I/O, no
// clocks, no globals beyond the bundled pattern tables.
package format

import (
	"strconv"
	"strings"

	"github.com/rawblock/inspect-gateway/internal/schema"
	"github.com/rawblock/inspect-gateway/pkg/models"
)

// Special def indexes that never resolve through the weapons table.
const (
	defIndexSticker   = 1209
	defIndexGraffiti1 = 1348
	defIndexGraffiti2 = 1349
	defIndexKeychain  = 1355
)

// Quality values with formatting significance.
const (
	qualityStar     = 3  // ★ knives and gloves
	qualitySouvenir = 12
)

// Phases recognized inside paint names, e.g. "Doppler (Phase 2)".
var phases = map[string]bool{
	"Phase 1":     true,
	"Phase 2":     true,
	"Phase 3":     true,
	"Phase 4":     true,
	"Ruby":        true,
	"Sapphire":    true,
	"Emerald":     true,
	"Black Pearl": true,
}

// Response formats an asset for the client. rank may be nil when the
// ranking view has no row for the asset yet.
func Response(asset *models.Asset, rank *models.Ranking, cat *schema.Catalog) *models.ItemInfo {
	info := &models.ItemInfo{
		AssetID:    strconv.FormatInt(asset.AssetID, 10),
		UniqueID:   asset.UniqueID,
		DefIndex:   asset.DefIndex,
		PaintIndex: intOrZero(asset.PaintIndex),
		PaintSeed:  intOrZero(asset.PaintSeed),
		Quality:    intOrZero(asset.Quality),
		Rarity:     intOrZero(asset.Rarity),
		Origin:     intOrZero(asset.Origin),
		IsStattrak: asset.IsStattrak,
		IsSouvenir: asset.IsSouvenir,
		Stickers:   enrichStickers(asset.Stickers, cat),
		Keychains:  enrichKeychains(asset.Keychains, cat),
	}
	if asset.CustomName != nil {
		info.CustomName = *asset.CustomName
	}

	weapon, isWeapon := cat.Weapon(asset.DefIndex)
	if !isWeapon {
		formatSpecial(asset, cat, info)
		return joinRanking(info, rank)
	}

	// Weapons carry the float; specials never do.
	info.FloatValue = asset.PaintWear
	info.WeaponName = weapon.Name

	paintName := ""
	if asset.PaintIndex != nil {
		paintName = cat.PaintName(asset.DefIndex, *asset.PaintIndex)
	}
	paintName, phase := splitPhase(paintName)
	info.PaintName = paintName
	info.Phase = phase

	var parts []string
	if intOrZero(asset.Quality) == qualityStar {
		parts = append(parts, "★")
	}
	if asset.KilleaterValue != nil {
		parts = append(parts, "StatTrak™")
	} else if intOrZero(asset.Quality) == qualitySouvenir {
		parts = append(parts, "Souvenir")
	}
	parts = append(parts, weapon.Name)
	if paintName != "" {
		parts = append(parts, "| "+paintName)
		if asset.PaintWear != nil {
			info.WearName = WearBucket(*asset.PaintWear)
			parts = append(parts, "("+info.WearName+")")
		}
	}
	if phase != "" {
		parts = append(parts, "- "+phase)
	}
	info.MarketHashName = strings.Join(parts, " ")
	info.PatternName = PatternName(info.MarketHashName, intOrZero(asset.PaintSeed))

	return joinRanking(info, rank)
}

func formatSpecial(asset *models.Asset, cat *schema.Catalog, info *models.ItemInfo) {
	switch asset.DefIndex {
	case defIndexSticker:
		info.Type = "Sticker"
		if len(info.Stickers) > 0 {
			info.MarketHashName = cat.StickerName(info.Stickers[0].StickerID)
		}
	case defIndexGraffiti1, defIndexGraffiti2:
		info.Type = "Graffiti"
		if len(info.Stickers) > 0 {
			id := strconv.Itoa(info.Stickers[0].StickerID)
			if name := cat.Graffiti[id].MarketHashName; name != "" {
				info.MarketHashName = name
			} else {
				info.MarketHashName = cat.StickerName(info.Stickers[0].StickerID)
			}
		}
	case defIndexKeychain:
		info.Type = "Keychain"
		// A keychain item without its slot-0 charm is malformed; pass it
		// through unnamed rather than invent one.
		if len(info.Keychains) > 0 && info.Keychains[0].Slot == 0 {
			info.MarketHashName = cat.KeychainName(info.Keychains[0].StickerID)
		}
	default:
		if name, ok := cat.AgentName(asset.DefIndex); ok {
			info.Type = "Agent"
			info.MarketHashName = name
			// Agent patches ride in the stickers array; they were already
			// enriched against the sticker table above.
		} else {
			info.Type = "Unknown"
		}
	}
}

// WearBucket maps a paint wear to its five-way human-readable category.
func WearBucket(wear float64) string {
	switch {
	case wear < 0.07:
		return "Factory New"
	case wear < 0.15:
		return "Minimal Wear"
	case wear < 0.38:
		return "Field-Tested"
	case wear < 0.45:
		return "Well-Worn"
	default:
		return "Battle-Scarred"
	}
}

// splitPhase strips a trailing phase marker from a paint name.
// "Doppler (Phase 2)" -> ("Doppler", "Phase 2"). Paint names without a
// recognized phase come back unchanged.
func splitPhase(paintName string) (string, string) {
	open := strings.LastIndex(paintName, " (")
	if open < 0 || !strings.HasSuffix(paintName, ")") {
		return paintName, ""
	}
	candidate := paintName[open+2 : len(paintName)-1]
	if !phases[candidate] {
		return paintName, ""
	}
	return paintName[:open], candidate
}

func joinRanking(info *models.ItemInfo, rank *models.Ranking) *models.ItemInfo {
	if rank == nil {
		return info
	}
	low, high, total := rank.LowRank, rank.HighRank, rank.TotalCount
	info.LowRank = &low
	info.HighRank = &high
	info.TotalCount = &total
	return info
}

func enrichStickers(stickers []models.Sticker, cat *schema.Catalog) []models.Sticker {
	out := make([]models.Sticker, len(stickers))
	for i, s := range stickers {
		s.Name = cat.StickerName(s.StickerID)
		out[i] = s
	}
	return out
}

func enrichKeychains(keychains []models.Keychain, cat *schema.Catalog) []models.Keychain {
	out := make([]models.Keychain, len(keychains))
	for i, k := range keychains {
		k.Name = cat.KeychainName(k.StickerID)
		out[i] = k
	}
	return out
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
