package template

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// 需要剥离的内联事件属性。
// 注意：这里刻意只做最小清洗（去 script、去这三个事件属性），
// 不做完整 XSS 过滤（CSS/URL 均不处理），与模板系统的既有契约一致。
var blockedAttrs = []string{"onclick", "onload", "onerror"}

// Clean 对不可信的管理员 HTML 做结构化清洗：
// 移除所有 <script> 元素，并递归剥离内联事件属性。
func Clean(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	sanitizeNode(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func sanitizeNode(n *html.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if child.Type == html.ElementNode && child.Data == "script" {
			n.RemoveChild(child)
		} else {
			sanitizeNode(child)
		}
		child = next
	}

	if n.Type != html.ElementNode {
		return
	}

	filtered := n.Attr[:0]
	for _, attr := range n.Attr {
		if isBlockedAttr(attr.Key) {
			continue
		}
		filtered = append(filtered, attr)
	}
	n.Attr = filtered
}

func isBlockedAttr(key string) bool {
	key = strings.ToLower(key)
	for _, blocked := range blockedAttrs {
		if key == blocked {
			return true
		}
	}
	return false
}
