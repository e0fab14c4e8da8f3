package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Exchange settles with regulator | Crypto Site</title></head>
<body>
<nav><a href="/">Home</a><a href="/subscribe">Subscribe to our newsletter</a></nav>
<article>
<h1>Exchange settles with regulator</h1>
<p>A major cryptocurrency exchange agreed on Tuesday to settle charges brought by the regulator over unregistered offerings, according to a filing.</p>
<p>The settlement includes a monetary penalty and an undertaking to register the affected products before relisting them for customers in the region.</p>
<p>Executives said the agreement resolves the last of the outstanding matters the company faced in the jurisdiction and that normal operations continue.</p>
</article>
<footer><p>Cookie policy and privacy policy links live here.</p></footer>
</body>
</html>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractReadableArticle(t *testing.T) {
	srv := serve(t, http.StatusOK, articleHTML)
	ex := NewExtractor(5 * time.Second)

	title, text, err := ex.Extract(context.Background(), srv.URL+"/story")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(title, "Exchange settles with regulator") {
		t.Errorf("title = %q, want the article headline", title)
	}
	if !strings.Contains(text, "unregistered offerings") {
		t.Errorf("body text missing article content: %q", text)
	}
	if strings.Contains(strings.ToLower(text), "newsletter") {
		t.Errorf("boilerplate survived cleanup: %q", text)
	}
}

func TestExtractEmptyPageFails(t *testing.T) {
	srv := serve(t, http.StatusOK, "<html><body><div>ok</div></body></html>")
	ex := NewExtractor(5 * time.Second)

	if _, _, err := ex.Extract(context.Background(), srv.URL); err == nil {
		t.Fatal("expected an error for a page with no readable content")
	}
}

func TestExtractHTTPErrorFails(t *testing.T) {
	srv := serve(t, http.StatusForbidden, "denied")
	ex := NewExtractor(5 * time.Second)

	if _, _, err := ex.Extract(context.Background(), srv.URL); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestCleanTextBoundsLength(t *testing.T) {
	long := strings.Repeat("This sentence is part of a very long paragraph of filler text.\n\n", 200)
	cleaned := cleanText(long)
	if len(cleaned) > maxTextChars {
		t.Errorf("cleaned text is %d chars, want <= %d", len(cleaned), maxTextChars)
	}
	if cleaned == "" {
		t.Error("bounding removed all content")
	}
}
