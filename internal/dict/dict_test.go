package dict

import (
	"errors"
	"testing"

	"github.com/suyashkumar/dicom/pkg/tag"
)

func TestResolveKeyword(t *testing.T) {
	attr, err := Resolve("PatientID")
	if err != nil {
		t.Fatalf("Resolve(PatientID) error: %v", err)
	}
	if attr.Tag != (tag.Tag{Group: 0x0010, Element: 0x0020}) {
		t.Errorf("unexpected tag: %v", attr.Tag)
	}
	if attr.VR != "LO" {
		t.Errorf("expected VR LO, got %s", attr.VR)
	}
	// The keyword form, not the spaced display name, keys result records.
	if attr.Keyword != "PatientID" {
		t.Errorf("keyword = %q, want PatientID", attr.Keyword)
	}
}

func TestResolveMultiVREntry(t *testing.T) {
	// PixelData is dual-VR (OW/OB); the first listed representation wins.
	attr, err := Resolve("7FE0,0010")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if attr.Keyword != "PixelData" {
		t.Errorf("keyword = %q, want PixelData", attr.Keyword)
	}
	if attr.VR == "" || attr.VR == "UN" {
		t.Errorf("VR = %q, want the entry's primary VR", attr.VR)
	}
}

func TestResolveTagToken(t *testing.T) {
	cases := []string{"0010,0020", "0010, 0020", "(0010,0020)", "0010,0020"}
	want := tag.Tag{Group: 0x0010, Element: 0x0020}
	for _, tok := range cases {
		attr, err := Resolve(tok)
		if err != nil {
			t.Fatalf("Resolve(%q) error: %v", tok, err)
		}
		if attr.Tag != want {
			t.Errorf("Resolve(%q) tag = %v, want %v", tok, attr.Tag, want)
		}
		if attr.Keyword != "PatientID" {
			t.Errorf("Resolve(%q) keyword = %q", tok, attr.Keyword)
		}
	}
}

func TestResolveTagTokenCaseInsensitive(t *testing.T) {
	attr, err := Resolve("0008,103e")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if attr.Keyword != "SeriesDescription" {
		t.Errorf("keyword = %q, want SeriesDescription", attr.Keyword)
	}
}

func TestResolvePrivateTag(t *testing.T) {
	attr, err := Resolve("0009,0010")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if attr.VR != "UN" {
		t.Errorf("private tag VR = %q, want UN", attr.VR)
	}
	if attr.Keyword != "" {
		t.Errorf("private tag keyword = %q, want empty", attr.Keyword)
	}
}

func TestResolveUnknownKeyword(t *testing.T) {
	_, err := Resolve("NotARealAttribute")
	if !errors.Is(err, ErrUnknownKeyword) {
		t.Errorf("expected ErrUnknownKeyword, got %v", err)
	}
}

func TestResolveMalformedTagToken(t *testing.T) {
	for _, tok := range []string{"0010,20", "10,0020", "0010,00ZZ", "0010,0020,0030"} {
		_, err := Resolve(tok)
		var malformed *MalformedTagTokenError
		if !errors.As(err, &malformed) {
			t.Errorf("Resolve(%q): expected MalformedTagTokenError, got %v", tok, err)
		}
	}
}

func TestResolveEmpty(t *testing.T) {
	if _, err := Resolve("   "); err == nil {
		t.Error("expected error for blank token")
	}
}

func TestKeywordOf(t *testing.T) {
	if got := KeywordOf(tag.Tag{Group: 0x0020, Element: 0x000D}); got != "StudyInstanceUID" {
		t.Errorf("KeywordOf = %q", got)
	}
	if got := KeywordOf(tag.Tag{Group: 0x0009, Element: 0x0010}); got != "0009,0010" {
		t.Errorf("KeywordOf private = %q", got)
	}
}

func TestFormatTag(t *testing.T) {
	if got := FormatTag(tag.Tag{Group: 0x0008, Element: 0x103E}); got != "0008,103E" {
		t.Errorf("FormatTag = %q", got)
	}
}
