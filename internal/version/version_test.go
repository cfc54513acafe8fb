package version_test

import (
	"strings"
	"testing"

	v "github.com/keithlinneman/linnemanlabs-static/internal/version"
)

func TestVCSDirtyFromLdflags(t *testing.T) {
	prev := v.VCSDirty
	t.Cleanup(func() { v.VCSDirty = prev })

	trueVal := true
	v.VCSDirty = &trueVal
	if info := v.Get(); info.VCSDirty == nil || !*info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want true", info.VCSDirty)
	}

	falseVal := false
	v.VCSDirty = &falseVal
	if info := v.Get(); info.VCSDirty == nil || *info.VCSDirty {
		t.Fatalf("VCSDirty = %v, want false", info.VCSDirty)
	}
}

func TestGet_LdflagsWin(t *testing.T) {
	prevV, prevC := v.Version, v.Commit
	t.Cleanup(func() { v.Version, v.Commit = prevV, prevC })

	v.Version = "1.2.3"
	v.Commit = "0123456789abcdef0123"
	info := v.Get()
	if info.Version != "1.2.3" || info.Commit != "0123456789abcdef0123" {
		t.Fatalf("info = %+v", info)
	}
	if info.GoVersion == "" {
		t.Fatal("GoVersion should come from build info")
	}
}

func TestInfo_String(t *testing.T) {
	dirty := true
	s := v.Info{Version: "1.2.3", Commit: "0123456789abcdef0123", VCSDirty: &dirty, GoVersion: "go1.24.11"}.String()

	for _, want := range []string{v.AppName, "1.2.3", "commit 0123456789ab,", "dirty", "go1.24.11"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
	if strings.Contains(s, "built") {
		t.Errorf("String() = %q, should omit empty build date", s)
	}
}
