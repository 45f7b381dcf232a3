package rss

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/teamnews/internal/fetch"
	"github.com/deusflow/teamnews/internal/news"
)

// Fetcher downloads RSS and Atom feeds and maps their items to raw entries.
type Fetcher struct {
	client *fetch.HTTPClient
}

func NewFetcher(client *fetch.HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads and parses one feed.
func (f *Fetcher) Fetch(ctx context.Context, src news.Source) ([]news.RawEntry, error) {
	body, err := f.client.Get(ctx, src.URL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	// gofeed.Parser keeps per-parse state, so each fetch gets its own.
	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("error parsing feed %s: %w", src.URL, err)
	}

	entries := make([]news.RawEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, fromItem(item))
	}
	return entries, nil
}

func fromItem(item *gofeed.Item) news.RawEntry {
	e := news.RawEntry{
		Title:           item.Title,
		Link:            item.Link,
		GUID:            item.GUID,
		Description:     item.Description,
		Content:         item.Content,
		Published:       item.Published,
		PublishedParsed: item.PublishedParsed,
		Updated:         item.Updated,
		UpdatedParsed:   item.UpdatedParsed,
	}
	if e.Link == "" {
		for _, l := range item.Links {
			if l != "" {
				e.Link = l
				break
			}
		}
	}
	author := item.Author
	if author == nil && len(item.Authors) > 0 {
		author = item.Authors[0]
	}
	if author != nil && (author.Name != "" || author.Email != "") {
		e.Author = &news.RawAuthor{Name: author.Name, Email: author.Email}
	}
	return e
}
