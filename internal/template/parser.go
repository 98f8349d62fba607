package template

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// MarkerAttr 会被写到根 <html> 元素上，标记这是一份编译后的模板。
// 仅作提示用途，渲染行为不依赖它。
const MarkerAttr = "data-taocv-template"

var (
	// <!-- {{#each NAME}} --> ... <!-- {{/each}} -->，非贪婪、跨行。
	eachPattern = regexp.MustCompile(`(?s)<!--\s*\{\{#each\s+(\w+)\}\}\s*-->(.*?)<!--\s*\{\{/each\}\}\s*-->`)

	// <!-- {{#if COND}} --> ... <!-- {{/if}} -->
	ifPattern = regexp.MustCompile(`(?s)<!--\s*\{\{#if\s+([^}]+)\}\}\s*-->(.*?)<!--\s*\{\{/if\}\}\s*-->`)

	// 任意 {{EXPR}}，具体是否改写由 rewriteExpr 决定。
	placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)
)

// Compile 将管理员 HTML 中的占位符语法改写为 html/template 原生指令。
//
// 输入先经过容错的 HTML 解析（结构归一化、补全 html/head/body），
// 随后在序列化文本上依固定顺序执行三趟改写：循环、条件、普通插值。
// 顺序不可调换：循环/条件块的标记藏在 HTML 注释里，必须先于普通插值处理。
//
// 未闭合的 {{#each}}/{{#if}} 块不会报错，按字面文本原样保留（尽力转换）。
// 嵌套语义：{{#if}} 嵌在 {{#each}} 内（或反之）可用；{{#each}} 嵌套 {{#each}}
// 不受支持，外层会在第一个 {{/each}} 处闭合。
func Compile(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	markRoot(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}

	out := buf.String()
	out = rewriteLoops(out)
	out = rewriteConditionals(out)
	out = rewriteSimplePlaceholders(out)
	return out, nil
}

func markRoot(doc *html.Node) {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == html.ElementNode && n.Data == "html" {
			for _, attr := range n.Attr {
				if attr.Key == MarkerAttr {
					return
				}
			}
			n.Attr = append(n.Attr, html.Attribute{Key: MarkerAttr, Val: "1"})
			return
		}
	}
}

// rewriteLoops 将 each 块改写为针对 cvData.sections.NAME 的 range 指令。
// 循环体内的普通占位符绑定到当前迭代项（别名为 NAME 去掉结尾 s，
// 无结尾 s 时为 NAME+"Item"）。
func rewriteLoops(s string) string {
	return eachPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := eachPattern.FindStringSubmatch(match)
		listName := groups[1]
		content := groups[2]

		alias := singularize(listName)
		content = bindToItem(content, alias)

		return fmt.Sprintf(
			`<div data-each="%s">{{range $%s := $.cvData.sections.%s}}%s{{end}}</div>`,
			listName, alias, listName, content,
		)
	})
}

// rewriteConditionals 将 if 块改写为对 cvData.COND 真值的可见性包裹。
// 表达式锚定在模板根（$），因此块本身可以出现在 range 体内。
func rewriteConditionals(s string) string {
	return ifPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := ifPattern.FindStringSubmatch(match)
		cond := strings.TrimSpace(groups[1])
		content := groups[2]

		return fmt.Sprintf(
			`<div data-if="%s">{{if $.cvData.%s}}%s{{end}}</div>`,
			cond, cond, content,
		)
	})
}

// rewriteSimplePlaceholders 将剩余的 {{EXPR}} 改写为 cvData 根上的插值。
// 已编译的指令（#、/、.、$ 开头或引擎关键字）原样跳过，保证重复编译是幂等的。
func rewriteSimplePlaceholders(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		if !isRewritableExpr(expr) {
			return match
		}
		return "{{$.cvData." + expr + "}}"
	})
}

// bindToItem 将循环体内的普通占位符改写到迭代项别名上。
// {{alias.field}} 与 {{field}} 均绑定到 $alias。
func bindToItem(content, alias string) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		expr := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		if !isRewritableExpr(expr) {
			return match
		}
		if expr == alias {
			return "{{$" + alias + "}}"
		}
		if rest, ok := strings.CutPrefix(expr, alias+"."); ok {
			return "{{$" + alias + "." + rest + "}}"
		}
		return "{{$" + alias + "." + expr + "}}"
	})
}

func singularize(name string) string {
	if strings.HasSuffix(name, "s") {
		return strings.TrimSuffix(name, "s")
	}
	return name + "Item"
}

func isRewritableExpr(expr string) bool {
	if expr == "" {
		return false
	}
	switch expr[0] {
	case '#', '/', '.', '$':
		return false
	}
	if expr == "end" || expr == "else" {
		return false
	}
	for _, keyword := range []string{"range ", "if ", "with ", "template ", "block ", "define "} {
		if strings.HasPrefix(expr, keyword) {
			return false
		}
	}
	return true
}
