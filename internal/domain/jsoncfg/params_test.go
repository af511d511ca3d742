package jsoncfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRatioTypeFallsBackToProtocolTable(t *testing.T) {
	p := &Params{}
	p.Normalize()

	if got := p.RatioType("16:9"); got != 3 {
		t.Fatalf("RatioType(16:9) = %d, want 3 from fallback table", got)
	}
	if got := p.RatioType("1:1"); got != 1 {
		t.Fatalf("RatioType(1:1) = %d, want 1", got)
	}
	if got := p.RatioType("not-a-ratio"); got != 1 {
		t.Fatalf("unknown ratio = %d, want default 1", got)
	}
}

func TestRatioTypePrefersConfiguredEntry(t *testing.T) {
	p := &Params{
		Ratios: map[string]RatioConfig{
			"16:9": {RatioType: 9, Width: 1920, Height: 1080},
		},
	}
	p.Normalize()

	if got := p.RatioType("16:9"); got != 9 {
		t.Fatalf("RatioType(16:9) = %d, want configured 9", got)
	}
	w, h := p.Dimensions("16:9")
	if w != 1920 || h != 1080 {
		t.Fatalf("Dimensions(16:9) = %dx%d, want configured 1920x1080", w, h)
	}
}

func TestDimensionsUseResolutionTier(t *testing.T) {
	p := &Params{ResolutionType: "1k"}
	p.Normalize()
	w, h := p.Dimensions("9:16")
	if w != 936 || h != 1664 {
		t.Fatalf("1k 9:16 = %dx%d, want 936x1664", w, h)
	}

	p = &Params{ResolutionType: "4k"}
	p.Normalize()
	w, h = p.Dimensions("16:9")
	if w != 5404 || h != 3040 {
		t.Fatalf("4k 16:9 = %dx%d, want 5404x3040", w, h)
	}

	p = &Params{}
	p.Normalize()
	w, h = p.Dimensions("1:1")
	if w != 2048 || h != 2048 {
		t.Fatalf("default tier 1:1 = %dx%d, want 2048x2048", w, h)
	}
}

func TestDimensionsUnknownRatioDefaultsToSquare(t *testing.T) {
	p := &Params{}
	p.Normalize()
	w, h := p.Dimensions("7:5")
	if w != 1024 || h != 1024 {
		t.Fatalf("unknown ratio = %dx%d, want 1024x1024", w, h)
	}
}

func TestLoadNormalizesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{
		"accounts": [{"sessionid": "abc123", "description": "primary"}],
		"params": {"resolution_type": "1k"},
		"timeout": {"max_wait_time": 60}
	}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Accounts) != 1 || f.Accounts[0].SessionID != "abc123" {
		t.Fatalf("accounts = %#v", f.Accounts)
	}
	if f.Params.DefaultModel != DefaultModelKey {
		t.Fatalf("default model = %q", f.Params.DefaultModel)
	}
	if _, ok := f.Params.Model("3.0"); !ok {
		t.Fatal("built-in model table missing 3.0")
	}
	if f.Timeout.MaxWaitSeconds != 60 {
		t.Fatalf("max wait = %d, want 60", f.Timeout.MaxWaitSeconds)
	}
	if f.Timeout.CheckIntervalSeconds != 10 {
		t.Fatalf("check interval = %d, want default 10", f.Timeout.CheckIntervalSeconds)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
