package fileset

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/sevigo/locomote-server/internal/core"
)

// htmlRewriteProcessor parses page metadata into record.Page and, when
// piping an .html file's contents, rewrites every absolute a/href and
// img/src (and the handful of other URL-bearing attributes below) to be
// prefixed with ctx.BasePath. Rewriting runs token-by-token over the
// tokenizer so it never buffers the whole document.
type htmlRewriteProcessor struct{}

func (htmlRewriteProcessor) Kind() core.ProcessorKind { return core.ProcessorHTMLRewrite }

// urlAttrs maps a tag name to the attribute on it that carries a
// relocatable URL.
var urlAttrs = map[string]string{
	"a":      "href",
	"link":   "href",
	"img":    "src",
	"script": "src",
	"iframe": "src",
	"video":  "src",
	"audio":  "src",
	"source": "src",
}

func (htmlRewriteProcessor) MakeRecord(p, category, commit string, status core.RecordStatus, content Reader) (*core.FileRecord, error) {
	rec := &core.FileRecord{Path: p, Category: category, Status: status, Commit: commit}
	if content == nil {
		return rec, nil
	}
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}
	rec.Page = extractPageInfo(doc)
	return rec, nil
}

func extractPageInfo(doc *html.Node) *core.PageInfo {
	page := &core.PageInfo{Meta: map[string]any{}}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name := attrVal(n, "name")
				content := attrVal(n, "content")
				if name == "" || content == "" {
					break
				}
				if name == "type" {
					page.Type = content
				} else {
					page.Meta[name] = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(page.Meta) == 0 {
		page.Meta = nil
	}
	return page
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// PipeContents relocates every absolute URL attribute if path is an
// .html file; for any other path it copies src to dst unchanged.
func (htmlRewriteProcessor) PipeContents(ctx *core.RequestContext, path string, src Reader, dst Writer) error {
	if !strings.HasSuffix(path, ".html") {
		_, err := io.Copy(dst, src)
		return err
	}

	z := html.NewTokenizer(src)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return err
			}
			return nil
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			attr, ok := urlAttrs[tok.Data]
			if !ok {
				if _, err := dst.Write(z.Raw()); err != nil {
					return err
				}
				continue
			}
			relocated := false
			for i, a := range tok.Attr {
				if a.Key == attr && strings.HasPrefix(a.Val, "/") {
					tok.Attr[i].Val = ctx.BasePath + a.Val
					relocated = true
				}
			}
			if !relocated {
				if _, err := dst.Write(z.Raw()); err != nil {
					return err
				}
				continue
			}
			if _, err := io.WriteString(dst, tok.String()); err != nil {
				return err
			}
		default:
			if _, err := dst.Write(z.Raw()); err != nil {
				return err
			}
		}
	}
}

// MakeSearchRecord indexes the page title plus its rendered text content.
func (htmlRewriteProcessor) MakeSearchRecord(rec *core.FileRecord, content Reader) (*SearchRecord, bool, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, false, err
	}
	var text strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				text.WriteString(t)
				text.WriteByte(' ')
			}
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	title := rec.Path
	if rec.Page != nil && rec.Page.Title != "" {
		title = rec.Page.Title
	}
	return &SearchRecord{
		ID:       rec.Path,
		Path:     rec.Path,
		Title:    title,
		Content:  strings.TrimSpace(text.String()),
		Category: rec.Category,
	}, true, nil
}
