package textproc

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxScrapeChars 抓取正文的最大字符数，超出部分截断并追加 "..."
const MaxScrapeChars = 5000

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
}

var blockLevel = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Blockquote: true, atom.Pre: true, atom.Table: true, atom.Ul: true, atom.Ol: true,
}

// Page 网页抽取结果
type Page struct {
	Title string
	Text  string
}

// ExtractHTML 解析 HTML，返回标题和清洗后的可见文本
func ExtractHTML(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Title {
				if page.Title == "" && n.FirstChild != nil {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockLevel[n.DataAtom] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	page.Text = CleanText(b.String())
	return page, nil
}

// CleanText 逐行去空白，行内按连续两个空格拆成短语后以单个空格重新连接，丢弃空行
func CleanText(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var phrases []string
		for _, p := range strings.Split(line, "  ") {
			if p = strings.TrimSpace(p); p != "" {
				phrases = append(phrases, p)
			}
		}
		if len(phrases) > 0 {
			out = append(out, strings.Join(phrases, " "))
		}
	}
	return strings.Join(out, " ")
}

// Truncate 超过 limit 个字符时截断并追加 "..."
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
