package inspect

import (
	"errors"
	"testing"
)

func TestParseQueryExplicitParams(t *testing.T) {
	req, err := ParseQuery("76561198000000001", "200", "456", "", "", false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.S != "76561198000000001" || req.A != "200" || req.D != "456" || req.M != "" {
		t.Fatalf("req = %+v", req)
	}
}

func TestParseQueryMarketListing(t *testing.T) {
	req, err := ParseQuery("", "200", "456", "3917245650500783529", "", false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.M != "3917245650500783529" {
		t.Fatalf("req = %+v", req)
	}
}

func TestParseQueryZeroMarketIDFallsBackToSteamID(t *testing.T) {
	req, err := ParseQuery("76561198000000001", "200", "456", "0", "", false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.M != "" || req.S != "76561198000000001" {
		t.Fatalf("req = %+v", req)
	}
}

func TestParseQueryRejects(t *testing.T) {
	cases := []struct {
		name          string
		s, a, d, m, u string
	}{
		{"bad steam id prefix", "12341198000000001", "200", "456", "", ""},
		{"steam id too short", "7656119800000001", "200", "456", "", ""},
		{"missing a", "76561198000000001", "", "456", "", ""},
		{"missing d", "76561198000000001", "200", "", "", ""},
		{"no owner", "", "200", "456", "", ""},
		{"non-numeric a", "76561198000000001", "abc", "456", "", ""},
		{"non-numeric d", "76561198000000001", "200", "0x12", "", ""},
		{"garbage url", "", "", "", "", "https://example.com/item/5"},
		{"wrong app id", "", "", "", "", "steam://rungame/570/76561202255233023/+csgo_econ_action_preview S76561198000000001A200D456"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseQuery(tc.s, tc.a, tc.d, tc.m, tc.u, false)
			var badReq *BadRequestError
			if !errors.As(err, &badReq) {
				t.Fatalf("err = %v, want BadRequestError", err)
			}
		})
	}
}

func TestParseInspectURLOwnerForm(t *testing.T) {
	url := "steam://rungame/730/76561202255233023/+csgo_econ_action_preview S76561198000000001A6768147729D12557175561287951743"
	req, err := ParseQuery("", "", "", "", url, true)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.S != "76561198000000001" || req.A != "6768147729" || req.D != "12557175561287951743" {
		t.Fatalf("req = %+v", req)
	}
	if !req.Refresh {
		t.Fatal("refresh flag lost")
	}
}

func TestParseInspectURLMarketForm(t *testing.T) {
	url := "steam://rungame/730/76561202255233023/ csgo_econ_action_preview M3917245650500783529A29726033221D5961599088196764529"
	req, err := ParseQuery("", "", "", "", url, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.M != "3917245650500783529" || req.A != "29726033221" || req.S != "" {
		t.Fatalf("req = %+v", req)
	}
}

func TestParseInspectURLEncodedSpace(t *testing.T) {
	url := "steam://rungame/730/76561202255233023/+csgo_econ_action_preview%20S76561198000000001A200D456"
	req, err := ParseQuery("", "", "", "", url, false)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.A != "200" || req.D != "456" {
		t.Fatalf("req = %+v", req)
	}
}
