package config

import "testing"

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"unix", "1700000000", 1700000000, false},
		{"rfc3339", "2023-11-14T22:13:20Z", 1700000000, false},
		{"garbage", "not-a-time", 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTimestamp(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimestamp(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("ParseTimestamp(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestSplitAndClean(t *testing.T) {
	got := splitAndClean(" 0xaaa, ,0xbbb ,")
	if len(got) != 2 || got[0] != "0xaaa" || got[1] != "0xbbb" {
		t.Fatalf("splitAndClean = %v", got)
	}
	if splitAndClean("") != nil {
		t.Fatalf("empty input should yield nil")
	}
}
