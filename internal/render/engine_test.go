package render

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"taocv/internal/database"
	"taocv/internal/errcode"
)

type fakeReader struct {
	files map[string]string
}

func (f *fakeReader) Read(_ context.Context, fileName string) (string, error) {
	content, ok := f.files[fileName]
	if !ok {
		return "", errors.New("object not found")
	}
	return content, nil
}

type fakeCache struct {
	entries map[string]string
	hits    int
	misses  int
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	if v, ok := c.entries[key]; ok {
		c.hits++
		return v, true, nil
	}
	c.misses++
	return "", false, nil
}

func (c *fakeCache) Put(_ context.Context, key, html string, _ time.Duration) error {
	c.puts++
	c.entries[key] = html
	return nil
}

func (c *fakeCache) InvalidateCV(_ context.Context, cvID uint) error { return nil }
func (c *fakeCache) InvalidateAll(_ context.Context) error           { return nil }

const compiledDoc = `<html><body>
<h1>{{$.cvData.user.firstName}} {{$.cvData.user.lastName}}</h1>
<ul>{{range $experience := $.cvData.sections.experiences}}<li>{{$experience.position}} at {{$experience.company}}</li>{{end}}</ul>
{{if $.cvData.summary}}<p>{{$.cvData.summary}}</p>{{end}}
</body></html>`

func renderableCV() *database.CV {
	templateID := uint(1)
	return &database.CV{
		Model:      gorm.Model{ID: 10},
		TemplateID: &templateID,
		Template: &database.Template{
			Model:            gorm.Model{ID: 1},
			CompiledFilePath: "template_test_20240101_000000_abc123.html",
		},
		CVData: datatypes.JSON(`{"summary":"A short summary","user":{"firstName":"Ada","lastName":"Lovelace"}}`),
		Sections: []database.CVSection{
			{
				SectionType: "experiences",
				SectionData: datatypes.JSON(`[{"position":"Engineer","company":"Analytical"}]`),
				IsVisible:   boolPtr(true),
				OrderIndex:  intPtr(0),
			},
		},
	}
}

func newTestEngine(cache Cache) (*Engine, *fakeReader) {
	reader := &fakeReader{files: map[string]string{
		"template_test_20240101_000000_abc123.html": compiledDoc,
	}}
	return NewEngine(reader, cache, time.Minute, nil), reader
}

func TestRenderProducesHTML(t *testing.T) {
	engine, _ := newTestEngine(nil)

	html, err := engine.Render(context.Background(), renderableCV())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{
		"<h1>Ada Lovelace</h1>",
		"<li>Engineer at Analytical</li>",
		"<p>A short summary</p>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered html missing %q:\n%s", want, html)
		}
	}
}

func TestRenderSecondCallServedFromCache(t *testing.T) {
	cache := newFakeCache()
	engine, reader := newTestEngine(cache)
	cv := renderableCV()

	first, err := engine.Render(context.Background(), cv)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	if cache.puts != 1 || cache.misses != 1 {
		t.Fatalf("first render should miss once and put once, got misses=%d puts=%d", cache.misses, cache.puts)
	}

	// 删掉产物：命中缓存时不应再读存储。
	reader.files = map[string]string{}

	second, err := engine.Render(context.Background(), cv)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("second render should hit cache, hits=%d", cache.hits)
	}
	if first != second {
		t.Errorf("cached html differs from rendered html")
	}
}

func TestRenderCacheKeyedByContent(t *testing.T) {
	cache := newFakeCache()
	engine, _ := newTestEngine(cache)

	if _, err := engine.Render(context.Background(), renderableCV()); err != nil {
		t.Fatalf("render: %v", err)
	}

	changed := renderableCV()
	changed.CVData = datatypes.JSON(`{"summary":"Other","user":{"firstName":"Grace","lastName":"Hopper"}}`)
	html, err := engine.Render(context.Background(), changed)
	if err != nil {
		t.Fatalf("render changed: %v", err)
	}
	if cache.hits != 0 {
		t.Errorf("changed cv must not hit the old entry, hits=%d", cache.hits)
	}
	if !strings.Contains(html, "Grace Hopper") {
		t.Errorf("changed cv rendered stale content:\n%s", html)
	}
}

func TestRenderWithoutTemplate(t *testing.T) {
	engine, _ := newTestEngine(nil)
	cv := renderableCV()
	cv.Template = nil

	_, err := engine.Render(context.Background(), cv)
	if errcode.CodeOf(err) != errcode.TemplateNotFound {
		t.Errorf("expected TemplateNotFound, got %v", err)
	}
}

func TestRenderWithoutCompiledFile(t *testing.T) {
	engine, _ := newTestEngine(nil)
	cv := renderableCV()
	cv.Template.CompiledFilePath = ""

	_, err := engine.Render(context.Background(), cv)
	if errcode.CodeOf(err) != errcode.TemplateFileNotFound {
		t.Errorf("expected TemplateFileNotFound, got %v", err)
	}
}

func TestRenderMissingArtifact(t *testing.T) {
	engine, reader := newTestEngine(nil)
	reader.files = map[string]string{}

	_, err := engine.Render(context.Background(), renderableCV())
	if errcode.CodeOf(err) != errcode.TemplateFileNotFound {
		t.Errorf("expected TemplateFileNotFound, got %v", err)
	}
}

func TestRenderBrokenDirective(t *testing.T) {
	engine, reader := newTestEngine(nil)
	reader.files["template_test_20240101_000000_abc123.html"] = `{{range}}`

	_, err := engine.Render(context.Background(), renderableCV())
	if errcode.CodeOf(err) != errcode.TemplateRenderFailed {
		t.Errorf("expected TemplateRenderFailed, got %v", err)
	}
	if errcode.MessageOf(err) != "failed to render template" {
		t.Errorf("caller-facing message must be stable, got %q", errcode.MessageOf(err))
	}
}

func TestRenderPreviewUsesSampleData(t *testing.T) {
	engine, _ := newTestEngine(nil)
	tpl := &database.Template{
		Model:            gorm.Model{ID: 1},
		CompiledFilePath: "template_test_20240101_000000_abc123.html",
	}

	html, err := engine.RenderPreview(context.Background(), tpl)
	if err != nil {
		t.Fatalf("render preview: %v", err)
	}
	if !strings.Contains(html, "Senior Software Engineer at Tech Corp") {
		t.Errorf("preview should render sample experiences:\n%s", html)
	}
}

func TestRenderEmptyIsStructureOnly(t *testing.T) {
	engine, reader := newTestEngine(nil)
	reader.files["template_test_20240101_000000_abc123.html"] = `<ul>{{range $experience := $.cvData.sections.experiences}}<li>{{$experience.position}}</li>{{end}}</ul>`
	tpl := &database.Template{
		Model:            gorm.Model{ID: 1},
		CompiledFilePath: "template_test_20240101_000000_abc123.html",
	}

	html, err := engine.RenderEmpty(context.Background(), tpl)
	if err != nil {
		t.Fatalf("render empty: %v", err)
	}
	if strings.Contains(html, "<li>") {
		t.Errorf("empty render should not emit loop items:\n%s", html)
	}
}
