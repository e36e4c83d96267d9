// Package fetcher downloads a web page and reduces it to indexable
// plain text plus display metadata (title, favicon).
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is the cleaned form of a fetched web page.
type Page struct {
	Title   string
	Content string
	Favicon string
}

type Client struct {
	httpClient *http.Client
	userAgent  string
}

func New(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// FetchAndClean downloads pageURL, strips script/style noise, and
// returns the page title, whitespace-normalized text content, and a
// resolved favicon URL when one can be found. Any network or parse
// failure is returned as an error; callers abort ingestion before any
// index write.
func (c *Client) FetchAndClean(ctx context.Context, pageURL string) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("invalid page url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request failed: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s failed: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s failed: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s failed: %w", pageURL, err)
	}

	doc.Find("script, style, noscript").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "No title"
	}

	content := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if content == "" {
		// Some pages carry all text outside body (or have none).
		content = strings.Join(strings.Fields(doc.Text()), " ")
	}

	return &Page{
		Title:   title,
		Content: content,
		Favicon: c.resolveFavicon(ctx, base, doc),
	}, nil
}

// resolveFavicon prefers an explicit <link rel*=icon>, falling back to
// a HEAD probe of /favicon.ico. Failure is soft: an empty string means
// no favicon.
func (c *Client) resolveFavicon(ctx context.Context, base *url.URL, doc *goquery.Document) string {
	var href string
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if !strings.Contains(strings.ToLower(rel), "icon") {
			return true
		}
		if h, ok := s.Attr("href"); ok && strings.TrimSpace(h) != "" {
			href = strings.TrimSpace(h)
			return false
		}
		return true
	})

	if href != "" {
		if ref, err := url.Parse(href); err == nil {
			return base.ResolveReference(ref).String()
		}
	}

	fallback := base.ResolveReference(&url.URL{Path: "/favicon.ico"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fallback, nil)
	if err != nil {
		return ""
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return fallback
	}
	return ""
}
