package template

import (
	"strings"
	"testing"
)

func TestCompileSimplePlaceholder(t *testing.T) {
	out, err := Compile(`<div><h1>{{user.firstName}} {{user.lastName}}</h1></div>`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "{{$.cvData.user.firstName}}") {
		t.Errorf("first name placeholder not rewritten: %s", out)
	}
	if !strings.Contains(out, "{{$.cvData.user.lastName}}") {
		t.Errorf("last name placeholder not rewritten: %s", out)
	}
	if !strings.Contains(out, MarkerAttr) {
		t.Errorf("compiled output missing root marker: %s", out)
	}
}

func TestCompileLoopBindsInteriorToItem(t *testing.T) {
	raw := `<ul>
<!-- {{#each experiences}} -->
<li>{{experience.position}} at {{experience.company}}</li>
<!-- {{/each}} -->
</ul>`
	out, err := Compile(raw)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, `{{range $experience := $.cvData.sections.experiences}}`) {
		t.Errorf("range directive missing: %s", out)
	}
	if !strings.Contains(out, "{{$experience.position}}") {
		t.Errorf("interior placeholder not bound to item: %s", out)
	}
	if !strings.Contains(out, "{{$experience.company}}") {
		t.Errorf("interior placeholder not bound to item: %s", out)
	}
	if !strings.Contains(out, `data-each="experiences"`) {
		t.Errorf("loop wrapper missing: %s", out)
	}
	if strings.Contains(out, "#each") {
		t.Errorf("loop comment markers survived compilation: %s", out)
	}
}

func TestCompileLoopBareFieldBindsToItem(t *testing.T) {
	raw := `<!-- {{#each skills}} --><span>{{name}}</span><!-- {{/each}} -->`
	out, err := Compile(raw)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, `{{range $skill := $.cvData.sections.skills}}`) {
		t.Errorf("range directive missing: %s", out)
	}
	if !strings.Contains(out, "{{$skill.name}}") {
		t.Errorf("bare field not bound to item: %s", out)
	}
}

func TestCompileLoopListWithoutPluralSuffix(t *testing.T) {
	raw := `<!-- {{#each education}} --><p>{{education.school}}</p><!-- {{/each}} -->`
	out, err := Compile(raw)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, `{{range $educationItem := $.cvData.sections.education}}`) {
		t.Errorf("alias for non-plural list wrong: %s", out)
	}
	if !strings.Contains(out, "{{$educationItem.school}}") {
		t.Errorf("interior not bound to fallback alias: %s", out)
	}
}

func TestCompileConditional(t *testing.T) {
	raw := `<!-- {{#if user.summary}} --><p>{{user.summary}}</p><!-- {{/if}} -->`
	out, err := Compile(raw)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "{{if $.cvData.user.summary}}") {
		t.Errorf("if directive missing: %s", out)
	}
	if !strings.Contains(out, "{{$.cvData.user.summary}}") {
		t.Errorf("interior placeholder not rewritten: %s", out)
	}
	if !strings.Contains(out, `data-if="user.summary"`) {
		t.Errorf("conditional wrapper missing: %s", out)
	}
}

func TestCompileConditionalInsideLoop(t *testing.T) {
	raw := `<!-- {{#each experiences}} -->
<!-- {{#if config.showDates}} --><span>{{experience.duration}}</span><!-- {{/if}} -->
<!-- {{/each}} -->`
	out, err := Compile(raw)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	// 条件表达式锚定在根上，确保在 range 体内仍指向全局配置。
	if !strings.Contains(out, "{{if $.cvData.config.showDates}}") {
		t.Errorf("root-anchored conditional missing inside loop: %s", out)
	}
	if !strings.Contains(out, "{{$experience.duration}}") {
		t.Errorf("loop interior not bound to item: %s", out)
	}
}

func TestCompileUnclosedBlockLeftAsLiteral(t *testing.T) {
	raw := `<div><!-- {{#each experiences}} --><p>{{position}}</p></div>`
	out, err := Compile(raw)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "{{#each experiences}}") {
		t.Errorf("unclosed block comment should survive: %s", out)
	}
	if strings.Contains(out, "{{range") {
		t.Errorf("unclosed block must not produce a range directive: %s", out)
	}
	// 块外视角下 {{position}} 是普通占位符，仍会被改写。
	if !strings.Contains(out, "{{$.cvData.position}}") {
		t.Errorf("placeholder outside closed block not rewritten: %s", out)
	}
}

func TestCompileIsIdempotent(t *testing.T) {
	raw := `<div>
<!-- {{#each experiences}} --><li>{{experience.position}}</li><!-- {{/each}} -->
<!-- {{#if user.summary}} --><p>{{user.summary}}</p><!-- {{/if}} -->
<h1>{{user.firstName}}</h1>
</div>`
	once, err := Compile(raw)
	if err != nil {
		t.Fatalf("first compile: %v", err)
	}
	twice, err := Compile(once)
	if err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if once != twice {
		t.Errorf("compile not idempotent:\nonce:  %s\ntwice: %s", once, twice)
	}
}

func TestCompileSkipsCompiledDirectives(t *testing.T) {
	raw := `<div>{{$.cvData.user.firstName}}{{end}}{{else}}{{.Field}}</div>`
	out, err := Compile(raw)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if strings.Contains(out, "cvData.$") || strings.Contains(out, "cvData.end") ||
		strings.Contains(out, "cvData.else") || strings.Contains(out, "cvData..") {
		t.Errorf("compiled directives were rewritten again: %s", out)
	}
}

func TestCompileNormalizesFragment(t *testing.T) {
	out, err := Compile(`<p>{{user.email}}</p>`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(out, "<html") || !strings.Contains(out, "<body>") {
		t.Errorf("fragment should be normalized to a full document: %s", out)
	}
}
