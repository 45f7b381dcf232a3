package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/teamnews/internal/fetch"
	"github.com/deusflow/teamnews/internal/news"
)

// maxPagesCap bounds pagination regardless of what the source asks for.
const maxPagesCap = 3

// Fetcher scrapes list pages for sites that publish no usable feed.
type Fetcher struct {
	client *fetch.HTTPClient
	log    *slog.Logger
}

func NewFetcher(client *fetch.HTTPClient, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{client: client, log: log}
}

// Fetch reads the list page at src.URL and, if a next selector is set,
// up to MaxPages pages in total.
func (f *Fetcher) Fetch(ctx context.Context, src news.Source) ([]news.RawEntry, error) {
	if src.HTML == nil || src.HTML.Item == "" {
		return nil, fmt.Errorf("source %q has no item selector", src.Name)
	}
	sel := *src.HTML
	pages := sel.MaxPages
	if pages <= 0 {
		pages = 1
	}
	if pages > maxPagesCap {
		pages = maxPagesCap
	}

	var entries []news.RawEntry
	visited := make(map[string]struct{}, pages)
	pageURL := src.URL
	for page := 1; page <= pages && pageURL != ""; page++ {
		if _, seen := visited[pageURL]; seen {
			break
		}
		visited[pageURL] = struct{}{}

		doc, base, err := f.load(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			// Later pages are best effort; keep what the first ones gave.
			f.log.Warn("List page failed", slog.String("source", src.Name), slog.Int("page", page), slog.Any("error", err))
			break
		}
		entries = append(entries, ExtractEntries(doc, base, sel)...)

		pageURL = ""
		if sel.Next != "" {
			if href, ok := doc.Find(sel.Next).First().Attr("href"); ok {
				pageURL = resolve(base, href)
			}
		}
	}
	return entries, nil
}

func (f *Fetcher) load(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bad page url %q: %w", pageURL, err)
	}
	body, err := f.client.Get(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	return doc, base, nil
}

// ExtractEntries pulls one raw entry per item node. Empty sub-selectors
// fall back to the first heading for the title and the first anchor for
// the link.
func ExtractEntries(doc *goquery.Document, base *url.URL, sel news.HTMLList) []news.RawEntry {
	var entries []news.RawEntry
	doc.Find(sel.Item).Each(func(i int, s *goquery.Selection) {
		e := news.RawEntry{
			Title: text(pick(s, sel.Title, "h1, h2, h3, h4, a")),
		}

		link := pick(s, sel.Link, "a[href]")
		if goquery.NodeName(s) == "a" {
			if sel.Link == "" {
				link = s
			}
			if e.Title == "" && sel.Title == "" {
				e.Title = text(s)
			}
		}
		if href, ok := link.Attr("href"); ok {
			e.Link = resolve(base, href)
		}

		if sel.Summary != "" {
			e.Summary = text(s.Find(sel.Summary).First())
		}

		ts := pick(s, sel.Time, "time")
		if dt, ok := ts.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			e.Published = dt
		} else {
			e.Published = text(ts)
		}

		entries = append(entries, e)
	})
	return entries
}

func pick(s *goquery.Selection, selector, fallback string) *goquery.Selection {
	if selector == "" {
		selector = fallback
	}
	return s.Find(selector).First()
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
