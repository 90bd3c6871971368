package feed

import (
	"fmt"
	"os"
	"time"

	"github.com/mmcdole/gofeed"
)

// Inspection summarizes a feed file as a feed reader would see it.
type Inspection struct {
	Title     string
	Link      string
	ItemCount int
	Latest    *time.Time
}

type Inspector struct {
	parser *gofeed.Parser
}

func NewInspector() *Inspector {
	return &Inspector{parser: gofeed.NewParser()}
}

func (i *Inspector) Run(path string) (*Inspection, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed: %w", err)
	}
	defer file.Close()

	parsed, err := i.parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	result := &Inspection{
		Title:     parsed.Title,
		Link:      parsed.Link,
		ItemCount: len(parsed.Items),
	}

	for _, item := range parsed.Items {
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		if published != nil && (result.Latest == nil || published.After(*result.Latest)) {
			result.Latest = published
		}
	}

	return result, nil
}
