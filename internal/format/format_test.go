package format

import (
	"encoding/json"
	"testing"

	"github.com/rawblock/inspect-gateway/internal/schema"
	"github.com/rawblock/inspect-gateway/pkg/models"
)

const testCatalog = `{
	"weapons": {
		"7":   {"name": "AK-47", "paints": {"44": "Case Hardened", "490": "Asiimov"}},
		"507": {"name": "Karambit", "paints": {"418": "Doppler (Phase 2)", "568": "Gamma Doppler (Emerald)", "44": "Case Hardened"}}
	},
	"stickers":  {"5032": {"market_hash_name": "Sticker | Crown (Foil)"}},
	"agents":    {"4726": {"market_hash_name": "Special Agent Ava | FBI"}},
	"graffiti":  {"1": {"market_hash_name": "Sealed Graffiti | Little EZ"}},
	"keychains": {"20": {"market_hash_name": "Charm | Die-cast AK"}}
}`

func loadCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	var cat schema.Catalog
	if err := json.Unmarshal([]byte(testCatalog), &cat); err != nil {
		t.Fatalf("catalog fixture: %v", err)
	}
	return &cat
}

func intp(v int) *int          { return &v }
func floatp(v float64) *float64 { return &v }

func TestResponse_KnifeDopplerPhase(t *testing.T) {
	cat := loadCatalog(t)
	asset := &models.Asset{
		AssetID:    42,
		DefIndex:   507,
		PaintIndex: intp(418),
		PaintWear:  floatp(0.05),
		PaintSeed:  intp(100),
		Quality:    intp(3),
	}

	info := Response(asset, nil, cat)

	want := "★ Karambit | Doppler (Factory New) - Phase 2"
	if info.MarketHashName != want {
		t.Fatalf("market hash name = %q, want %q", info.MarketHashName, want)
	}
	if info.Phase != "Phase 2" {
		t.Errorf("phase = %q", info.Phase)
	}
	if info.PaintName != "Doppler" {
		t.Errorf("paint name = %q, phase must be stripped", info.PaintName)
	}
	if info.FloatValue == nil || *info.FloatValue != 0.05 {
		t.Errorf("float value = %v", info.FloatValue)
	}
}

func TestResponse_StatTrakBeatsSouvenirQuality(t *testing.T) {
	cat := loadCatalog(t)
	// A ★ StatTrak knife has quality 3 and a killeater value; the
	// killeater field decides StatTrak, never the quality.
	asset := &models.Asset{
		DefIndex:       507,
		PaintIndex:     intp(418),
		PaintWear:      floatp(0.2),
		Quality:        intp(3),
		KilleaterValue: intp(0),
	}

	info := Response(asset, nil, cat)

	want := "★ StatTrak™ Karambit | Doppler (Field-Tested) - Phase 2"
	if info.MarketHashName != want {
		t.Fatalf("market hash name = %q, want %q", info.MarketHashName, want)
	}
}

func TestResponse_Souvenir(t *testing.T) {
	cat := loadCatalog(t)
	asset := &models.Asset{
		DefIndex:   7,
		PaintIndex: intp(490),
		PaintWear:  floatp(0.4),
		Quality:    intp(12),
	}

	info := Response(asset, nil, cat)

	if info.MarketHashName != "Souvenir AK-47 | Asiimov (Well-Worn)" {
		t.Fatalf("market hash name = %q", info.MarketHashName)
	}
}

func TestResponse_UnknownPaintOmitsWearSuffix(t *testing.T) {
	cat := loadCatalog(t)
	asset := &models.Asset{
		DefIndex:   7,
		PaintIndex: intp(9999),
		PaintWear:  floatp(0.4),
		Quality:    intp(4),
	}

	info := Response(asset, nil, cat)

	// Wear bucket is only appended when the paint is known.
	if info.MarketHashName != "AK-47" {
		t.Fatalf("market hash name = %q", info.MarketHashName)
	}
	if info.WearName != "" {
		t.Errorf("wear name = %q, want empty", info.WearName)
	}
}

func TestWearBucket(t *testing.T) {
	cases := []struct {
		wear float64
		want string
	}{
		{0.0, "Factory New"},
		{0.069, "Factory New"},
		{0.07, "Minimal Wear"},
		{0.149, "Minimal Wear"},
		{0.15, "Field-Tested"},
		{0.38, "Well-Worn"},
		{0.449, "Well-Worn"},
		{0.45, "Battle-Scarred"},
		{0.99, "Battle-Scarred"},
	}
	for _, c := range cases {
		if got := WearBucket(c.wear); got != c.want {
			t.Errorf("WearBucket(%v) = %q, want %q", c.wear, got, c.want)
		}
	}
}

func TestResponse_Sticker(t *testing.T) {
	cat := loadCatalog(t)
	asset := &models.Asset{
		DefIndex:  1209,
		PaintWear: floatp(0.1), // must not leak into the response
		Stickers:  []models.Sticker{{Slot: 0, StickerID: 5032}},
	}

	info := Response(asset, nil, cat)

	if info.Type != "Sticker" {
		t.Fatalf("type = %q", info.Type)
	}
	if info.MarketHashName != "Sticker | Crown (Foil)" {
		t.Errorf("market hash name = %q", info.MarketHashName)
	}
	if info.FloatValue != nil {
		t.Error("special items must not carry a floatvalue")
	}
	if info.WearName != "" {
		t.Errorf("special items must not carry a wear bucket, got %q", info.WearName)
	}
}

func TestResponse_GraffitiBothDefIndexes(t *testing.T) {
	cat := loadCatalog(t)
	for _, def := range []int{1348, 1349} {
		asset := &models.Asset{
			DefIndex: def,
			Stickers: []models.Sticker{{Slot: 0, StickerID: 1}},
		}
		info := Response(asset, nil, cat)
		if info.Type != "Graffiti" {
			t.Errorf("def %d: type = %q", def, info.Type)
		}
		if info.MarketHashName != "Sealed Graffiti | Little EZ" {
			t.Errorf("def %d: market hash name = %q", def, info.MarketHashName)
		}
	}
}

func TestResponse_Keychain(t *testing.T) {
	cat := loadCatalog(t)
	asset := &models.Asset{
		DefIndex:  1355,
		Keychains: []models.Keychain{{Slot: 0, StickerID: 20, Pattern: intp(48879)}},
	}

	info := Response(asset, nil, cat)

	if info.Type != "Keychain" {
		t.Fatalf("type = %q", info.Type)
	}
	if info.MarketHashName != "Charm | Die-cast AK" {
		t.Errorf("market hash name = %q", info.MarketHashName)
	}
	if len(info.Keychains) != 1 || info.Keychains[0].Name != "Charm | Die-cast AK" {
		t.Errorf("keychain array not enriched: %+v", info.Keychains)
	}
}

func TestResponse_AgentAndUnknown(t *testing.T) {
	cat := loadCatalog(t)

	agent := Response(&models.Asset{DefIndex: 4726}, nil, cat)
	if agent.Type != "Agent" || agent.MarketHashName != "Special Agent Ava | FBI" {
		t.Errorf("agent = %+v", agent)
	}

	unknown := Response(&models.Asset{DefIndex: 31337}, nil, cat)
	if unknown.Type != "Unknown" {
		t.Errorf("type = %q", unknown.Type)
	}
}

func TestResponse_RankingJoin(t *testing.T) {
	cat := loadCatalog(t)
	asset := &models.Asset{DefIndex: 7, PaintIndex: intp(44), PaintWear: floatp(0.02), Quality: intp(4)}
	rank := &models.Ranking{LowRank: 3, HighRank: 912, TotalCount: 950}

	info := Response(asset, rank, cat)

	if info.LowRank == nil || *info.LowRank != 3 {
		t.Errorf("low rank = %v", info.LowRank)
	}
	if info.HighRank == nil || *info.HighRank != 912 {
		t.Errorf("high rank = %v", info.HighRank)
	}
	if info.TotalCount == nil || *info.TotalCount != 950 {
		t.Errorf("total count = %v", info.TotalCount)
	}
}

func TestPatternName(t *testing.T) {
	cases := []struct {
		name string
		seed int
		want string
	}{
		{"AK-47 | Case Hardened (Field-Tested)", 661, "Scar Pattern Blue Gem"},
		{"AK-47 | Case Hardened (Field-Tested)", 123, ""},
		{"★ Karambit | Marble Fade (Factory New)", 412, "Fire & Ice #1"},
		// Marble Fade must not fall through into the plain Fade table.
		{"★ Karambit | Marble Fade (Factory New)", 763, ""},
		{"★ Karambit | Fade (Factory New)", 763, "100% Fade"},
		{"★ Karambit | Gamma Doppler (Factory New) - Emerald", 741, "Max Emerald Tip"},
		{"AK-47 | Asiimov (Field-Tested)", 661, ""},
	}
	for _, c := range cases {
		if got := PatternName(c.name, c.seed); got != c.want {
			t.Errorf("PatternName(%q, %d) = %q, want %q", c.name, c.seed, got, c.want)
		}
	}
}
