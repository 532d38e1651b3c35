package server

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/grow/internal/hooks"
	"github.com/conneroisu/grow/internal/pod"
)

// DevUIExtension is the name of the extension injecting the dev banner.
const DevUIExtension = "grow:dev-ui"

// BannerInfo is shown in the dev banner of a rendered page.
type BannerInfo struct {
	PodPath string
	Locale  string
	// ReloadPath is the websocket endpoint the reload client connects to.
	ReloadPath string
}

const reloadScript = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var socket = new WebSocket(proto + location.host + %q);
  socket.onmessage = function (event) {
    var msg = JSON.parse(event.data);
    if (msg.type === "reload") { location.reload(); }
  };
})();`

// InjectBanner appends the dev banner and reload client to the body of an
// HTML document. Fragments without a body element are wrapped by the parser,
// so the output is always a complete document.
func InjectBanner(content []byte, info BannerInfo) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}
	body := findElement(doc, atom.Body)
	if body == nil {
		return content, nil
	}

	banner := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "id", Val: "grow-dev-banner"},
			{Key: "style", Val: "position: fixed; bottom: 0; right: 0; padding: 4px 8px; background: #1a202c; color: #e2e8f0; font: 12px monospace; z-index: 99999;"},
		},
	}
	label := info.PodPath
	if info.Locale != "" {
		label += " (" + info.Locale + ")"
	}
	banner.AppendChild(&html.Node{Type: html.TextNode, Data: label})
	body.AppendChild(banner)

	if info.ReloadPath != "" {
		script := &html.Node{Type: html.ElementNode, Data: "script", DataAtom: atom.Script}
		script.AppendChild(&html.Node{Type: html.TextNode, Data: fmt.Sprintf(reloadScript, info.ReloadPath)})
		body.AppendChild(script)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// NewDevUIExtension injects the banner into every rendered HTML document
// through post_render. Output that does not look like HTML is left alone.
func NewDevUIExtension(reloadPath string) hooks.Extension {
	return hooks.NewExtension(DevUIExtension, map[hooks.Key]hooks.Hook{
		hooks.PostRender: hooks.Func(func(_ context.Context, previous any, args ...any) (any, error) {
			content, ok := previous.(string)
			if !ok || !looksLikeHTML(content) {
				return previous, nil
			}
			info := BannerInfo{ReloadPath: reloadPath}
			if len(args) > 0 {
				if doc, ok := args[0].(*pod.Document); ok {
					info.PodPath, info.Locale = doc.PodPath(), doc.Locale()
				}
			}
			out, err := InjectBanner([]byte(content), info)
			if err != nil {
				return previous, err
			}
			return string(out), nil
		}),
	})
}

func looksLikeHTML(content string) bool {
	head := strings.ToLower(strings.TrimSpace(content))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.Contains(head, "<html") || strings.Contains(head, "<body")
}
