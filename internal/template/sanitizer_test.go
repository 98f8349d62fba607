package template

import (
	"strings"
	"testing"
)

func TestCleanRemovesScriptElements(t *testing.T) {
	out, err := Clean(`<div><script>alert(1)</script><p>hello</p></div>`)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if strings.Contains(out, "<script") || strings.Contains(out, "alert(1)") {
		t.Errorf("script element survived: %s", out)
	}
	if !strings.Contains(out, "<p>hello</p>") {
		t.Errorf("benign content lost: %s", out)
	}
}

func TestCleanStripsEventAttributes(t *testing.T) {
	out, err := Clean(`<img src="a.png" ONCLICK="x()" onload="y()" onerror="z()" alt="pic">`)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	for _, attr := range []string{"onclick", "onload", "onerror"} {
		if strings.Contains(strings.ToLower(out), attr) {
			t.Errorf("event attribute %q survived: %s", attr, out)
		}
	}
	if !strings.Contains(out, `src="a.png"`) || !strings.Contains(out, `alt="pic"`) {
		t.Errorf("benign attributes lost: %s", out)
	}
}

func TestCleanKeepsStyleAndPlaceholders(t *testing.T) {
	out, err := Clean(`<div style="color: red">{{user.firstName}}</div>`)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if !strings.Contains(out, `style="color: red"`) {
		t.Errorf("style attribute should be preserved: %s", out)
	}
	if !strings.Contains(out, "{{user.firstName}}") {
		t.Errorf("placeholder text must survive cleaning: %s", out)
	}
}
