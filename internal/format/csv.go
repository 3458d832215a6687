package format

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoTable 表示消息没有可导出的表格。
var ErrNoTable = errors.New("message has no table")

// TableCSV converts table markup into CSV: one line per <tr>, every <th>/<td> text
// double-quoted with embedded quotes doubled.
func TableCSV(markup string) (string, error) {
	doc, err := html.Parse(strings.NewReader(wrapTable(markup)))
	if err != nil {
		return "", fmt.Errorf("parse table: %w", err)
	}

	var rows []string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Tr {
			return true
		}
		var cells []string
		walk(n, func(c *html.Node) bool {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Th || c.DataAtom == atom.Td) {
				cells = append(cells, quoteCSV(textContent(c)))
				return false
			}
			return true
		})
		rows = append(rows, strings.Join(cells, ","))
		return true
	})

	if len(rows) == 0 {
		return "", ErrNoTable
	}
	return strings.Join(rows, "\n"), nil
}

// CSVFilename 返回导出文件名，形如 data-2024-03-05T14:07:09.123Z.csv。
func CSVFilename(at time.Time) string {
	return "data-" + at.UTC().Format("2006-01-02T15:04:05.000Z") + ".csv"
}

// wrapTable keeps bare <tr> fragments inside a table so the parser does not drop them.
func wrapTable(markup string) string {
	if strings.Contains(strings.ToLower(markup), "<table") {
		return markup
	}
	return "<table>" + markup + "</table>"
}

func walk(n *html.Node, visit func(*html.Node) bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if visit(c) {
			walk(c, visit)
		}
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}

func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
