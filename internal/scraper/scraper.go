// Package scraper turns an article URL into extracted title and body text.
// Extraction failures are recoverable per candidate; callers skip the item
// and move on.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/coinbrief/ingestor/internal/retry"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/127.0 Safari/537.36"

// maxBodyBytes caps how much HTML we are willing to read from one page.
const maxBodyBytes = 2 << 20

// maxTextChars bounds the extracted text kept for rewriting.
const maxTextChars = 4000

// Extractor downloads pages and extracts readable article content.
type Extractor struct {
	client *http.Client
}

func NewExtractor(timeout time.Duration) *Extractor {
	return &Extractor{
		client: &http.Client{Timeout: timeout},
	}
}

// Extract fetches the page and returns the article title and body text.
// It tries readability first and falls back to paragraph scraping when
// readability finds nothing usable.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, string, error) {
	var html []byte
	err := retry.Do(ctx, 2, 2*time.Second, func() error {
		var fetchErr error
		html, fetchErr = e.fetch(ctx, pageURL)
		return fetchErr
	})
	if err != nil {
		return "", "", err
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url %s: %w", pageURL, err)
	}

	title, text := extractReadable(html, parsedURL)
	if text == "" {
		title, text = extractParagraphs(html)
	}

	text = cleanText(text)
	if text == "" {
		return "", "", fmt.Errorf("no readable content at %s", pageURL)
	}

	return strings.TrimSpace(title), text, nil
}

func (e *Extractor) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return body, nil
}

func extractReadable(html []byte, pageURL *url.URL) (string, string) {
	article, err := readability.FromReader(bytes.NewReader(html), pageURL)
	if err != nil {
		return "", ""
	}
	return article.Title, article.TextContent
}

// extractParagraphs is the fallback for markup readability chokes on: try
// the usual content selectors and collect paragraph text.
func extractParagraphs(html []byte) (string, string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", ""
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	selectors := []string{
		"article p",
		".article-body p",
		".post-content p",
		".entry-content p",
		"main p",
		"p",
	}

	var paragraphs []string
	for _, selector := range selectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) > 0 {
			break
		}
	}

	return title, strings.Join(paragraphs, "\n\n")
}

// cleanText drops boilerplate lines and bounds the text length, cutting on
// a paragraph boundary where possible.
func cleanText(text string) string {
	junkIndicators := []string{
		"cookie", "subscribe", "newsletter", "sign up", "log in",
		"advertisement", "sponsored", "read more", "click here",
		"follow us", "share this", "privacy policy",
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 8 {
			continue
		}

		lower := strings.ToLower(line)
		junk := false
		for _, indicator := range junkIndicators {
			if strings.Contains(lower, indicator) {
				junk = true
				break
			}
		}
		if !junk {
			kept = append(kept, line)
		}
	}

	result := strings.Join(kept, "\n\n")
	for strings.Contains(result, "  ") {
		result = strings.ReplaceAll(result, "  ", " ")
	}
	result = strings.TrimSpace(result)

	if len(result) > maxTextChars {
		paragraphs := strings.Split(result, "\n\n")
		var selected []string
		total := 0
		for _, p := range paragraphs {
			if total+len(p) > maxTextChars {
				break
			}
			selected = append(selected, p)
			total += len(p) + 2
		}
		if len(selected) > 0 {
			result = strings.Join(selected, "\n\n")
		} else {
			result = result[:maxTextChars]
		}
	}

	return result
}
