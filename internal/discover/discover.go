// Package discover locates a line's timetable PDF on an HTML index page.
package discover

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoPDFLink is returned when the page links to no PDF document.
var ErrNoPDFLink = errors.New("no PDF link found")

// Link is an anchor pointing at a PDF document.
type Link struct {
	URL  string
	Text string
}

// PDFLinks returns every anchor whose path ends in .pdf, resolved against
// base, in document order. Duplicate URLs are reported once.
func PDFLinks(page []byte, base string) ([]Link, error) {
	root, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	var links []Link
	seen := map[string]bool{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "a") {
			if href := attr(n, "href"); href != "" {
				if u, err := baseURL.Parse(strings.TrimSpace(href)); err == nil && isPDFPath(u) && !seen[u.String()] {
					seen[u.String()] = true
					links = append(links, Link{URL: u.String(), Text: collapse(textOf(n))})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return links, nil
}

// FindPDFLink returns the first PDF link whose text or URL mentions hint.
// Matching ignores case, spaces and dashes, so "L-111" matches "L111L.pdf".
// Without a matching link the first PDF link is returned.
func FindPDFLink(page []byte, base string, hint string) (string, error) {
	links, err := PDFLinks(page, base)
	if err != nil {
		return "", err
	}
	if len(links) == 0 {
		return "", ErrNoPDFLink
	}
	if h := squash(hint); h != "" {
		for _, l := range links {
			if strings.Contains(squash(l.Text), h) || strings.Contains(squash(lastSegment(l.URL)), h) {
				return l.URL, nil
			}
		}
	}
	return links[0].URL, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
		}
	}
	dfs(n)
	return b.String()
}

func isPDFPath(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

func lastSegment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	p := u.Path
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	return p
}

func squash(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\t', '\n':
			return -1
		}
		return r
	}, s)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
