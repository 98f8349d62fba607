package render

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"taocv/internal/database"
)

func TestCacheKeyFormat(t *testing.T) {
	fingerprint := "42-some-fingerprint"
	sum := md5.Sum([]byte(fingerprint))
	want := fmt.Sprintf("rendered:cv:42:%s", hex.EncodeToString(sum[:]))

	if got := CacheKey(42, fingerprint); got != want {
		t.Errorf("CacheKey = %q, want %q", got, want)
	}
}

func TestCacheKeyShape(t *testing.T) {
	key := CacheKey(7, "anything")
	pattern := regexp.MustCompile(`^rendered:cv:7:[0-9a-f]{32}$`)
	if !pattern.MatchString(key) {
		t.Errorf("cache key %q does not match layout", key)
	}
}

func TestFingerprintIsDeterministic(t *testing.T) {
	cv := testCV()
	if Fingerprint(cv) != Fingerprint(cv) {
		t.Errorf("fingerprint must be deterministic")
	}
}

func TestFingerprintChangesWithInputs(t *testing.T) {
	base := Fingerprint(testCV())

	changed := testCV()
	changed.CVData = datatypes.JSON(`{"summary":"different"}`)
	if Fingerprint(changed) == base {
		t.Errorf("cv data change must alter fingerprint")
	}

	changed = testCV()
	otherTemplate := uint(99)
	changed.TemplateID = &otherTemplate
	if Fingerprint(changed) == base {
		t.Errorf("template change must alter fingerprint")
	}

	changed = testCV()
	changed.Customization = datatypes.JSON(`{"colors":{"primary":"#f00"}}`)
	if Fingerprint(changed) == base {
		t.Errorf("customization change must alter fingerprint")
	}

	changed = testCV()
	changed.Sections[0].SectionData = datatypes.JSON(`[{"position":"Other"}]`)
	if Fingerprint(changed) == base {
		t.Errorf("visible section change must alter fingerprint")
	}
}

func TestFingerprintIgnoresHiddenSections(t *testing.T) {
	base := Fingerprint(testCV())

	changed := testCV()
	changed.Sections = append(changed.Sections, database.CVSection{
		SectionType: "secret",
		SectionData: datatypes.JSON(`["x"]`),
		IsVisible:   boolPtr(false),
	})
	if Fingerprint(changed) != base {
		t.Errorf("hidden sections must not affect the fingerprint")
	}
}

func testCV() *database.CV {
	templateID := uint(3)
	return &database.CV{
		Model:         gorm.Model{ID: 42},
		TemplateID:    &templateID,
		CVData:        datatypes.JSON(`{"summary":"hello"}`),
		Customization: datatypes.JSON(`{"layout":"single"}`),
		Sections: []database.CVSection{
			{SectionType: "experiences", SectionData: datatypes.JSON(`[{"position":"Dev"}]`), IsVisible: boolPtr(true)},
		},
	}
}
