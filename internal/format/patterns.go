package format

import "strings"

// Bundled pattern-name tables. A pattern name is looked up from the
// composed market hash name plus the paint seed: the family token selects
// the table, the weapon token selects the seed map.
//
// Family tokens are matched most-specific first so "Gamma Doppler" never
// falls into the "Doppler" table and "Marble Fade" never falls into "Fade".

type patternFamily struct {
	token   string
	weapons map[string]map[int]string
}

var patternFamilies = []patternFamily{
	{
		token: "Gamma Doppler",
		weapons: map[string]map[int]string{
			"Karambit": {
				741: "Max Emerald Tip",
				547: "Clean Emerald",
			},
			"M9 Bayonet": {
				341: "Max Emerald",
			},
		},
	},
	{
		token: "Doppler",
		weapons: map[string]map[int]string{
			"Karambit": {
				171: "Pink Galaxy",
				387: "Good Phase 2 Pink",
				576: "Max Pink",
			},
			"Butterfly Knife": {
				182: "Pink Galaxy",
			},
		},
	},
	{
		token: "Case Hardened",
		weapons: map[string]map[int]string{
			"AK-47": {
				661: "Scar Pattern Blue Gem",
				670: "#2 Blue Gem",
				955: "Honorable Mention Blue",
				151: "Golden Booty",
				179: "#4 Blue Gem",
			},
			"Five-SeveN": {
				278: "Sunset Blaze",
				690: "Full Blue Top",
			},
			"Karambit": {
				387: "Blue Gem",
				442: "Hidden Blue Gem",
				269: "Gold Gem",
			},
			"Bayonet": {
				555: "Full Blue Fang",
			},
		},
	},
	{
		token: "Marble Fade",
		weapons: map[string]map[int]string{
			"Karambit": {
				412: "Fire & Ice #1",
				16:  "Fire & Ice",
				146: "Fire & Ice",
				241: "Fire & Ice",
				359: "Fire & Ice",
				393: "Fire & Ice",
				541: "Fire & Ice",
				602: "Fire & Ice",
				649: "Fire & Ice",
				688: "Fire & Ice",
				701: "Fire & Ice",
			},
			"Flip Knife": {
				16: "Fire & Ice",
			},
		},
	},
	{
		token: "Fade",
		weapons: map[string]map[int]string{
			"Karambit": {
				763: "100% Fade",
				412: "99% Fade",
			},
			"Glock-18": {
				763: "Full Fade",
			},
			"Bayonet": {
				763: "100% Fade",
			},
		},
	},
}

// PatternName resolves the community pattern name for a (market hash name,
// paint seed) pair, or "" when the seed is unremarkable.
func PatternName(marketHashName string, seed int) string {
	for _, fam := range patternFamilies {
		if !strings.Contains(marketHashName, fam.token) {
			continue
		}
		for weaponToken, seeds := range fam.weapons {
			if strings.Contains(marketHashName, weaponToken) {
				return seeds[seed]
			}
		}
		// First matching family wins even when the weapon has no table;
		// "Fade" must not re-match a "Marble Fade" name.
		return ""
	}
	return ""
}
