// Package intel generates the daily intelligence feed and owns the
// scheduler that runs generation once a day.
package intel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"workhub/api/internal/ai"
	"workhub/api/internal/store"
	"workhub/api/internal/util"
)

const (
	CategoryIndustry    = "industry"
	CategoryCompetitor  = "competitor"
	CategorySupplyChain = "supply_chain"

	itemsPerCycle = 4
	publishStep   = 30 * time.Minute
)

// ValidCategory reports whether category is one of the feed categories.
func ValidCategory(category string) bool {
	switch category {
	case CategoryIndustry, CategoryCompetitor, CategorySupplyChain:
		return true
	default:
		return false
	}
}

// GenerationError means the model answered but the answer could not be used.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("intelligence generation failed: %s: %v", e.Reason, e.Err)
	}
	return "intelligence generation failed: " + e.Reason
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationError reports whether err (or anything it wraps) is a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}

type PostStore interface {
	InsertPosts(ctx context.Context, posts []store.IntelligencePost) (int, error)
}

type Generator struct {
	client ai.Client
	posts  PostStore
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func NewGenerator(client ai.Client, posts PostStore, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client: client,
		posts:  posts,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return util.NewID("intel") },
	}
}

type generatedItem struct {
	Category  string   `json:"category"`
	Title     string   `json:"title"`
	Source    string   `json:"source"`
	Summary   string   `json:"summary"`
	AIInsight string   `json:"aiInsight"`
	Tags      []string `json:"tags"`
}

// Generate runs one cycle: prompt the model with search grounding, parse its
// JSON answer and insert the accepted items in a single statement.
func (g *Generator) Generate(ctx context.Context) ([]store.IntelligencePost, error) {
	now := g.now()
	raw, err := g.client.Generate(ctx, ai.Request{
		Messages: []ai.Message{{Role: ai.RoleUser, Content: buildPrompt(now)}},
		Search:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate intelligence: %w", err)
	}

	items, err := parseItems(raw)
	if err != nil {
		return nil, err
	}

	posts := make([]store.IntelligencePost, 0, len(items))
	for _, item := range items {
		category := strings.TrimSpace(strings.ToLower(item.Category))
		title := strings.TrimSpace(item.Title)
		if !ValidCategory(category) || title == "" {
			g.logger.Warn("dropping generated intelligence item",
				zap.String("category", item.Category),
				zap.String("title", item.Title),
			)
			continue
		}
		posts = append(posts, store.IntelligencePost{
			ID:          g.newID(),
			Category:    category,
			Title:       title,
			Source:      strings.TrimSpace(item.Source),
			Summary:     strings.TrimSpace(item.Summary),
			AIInsight:   strings.TrimSpace(item.AIInsight),
			Tags:        cleanTags(item.Tags),
			PublishedAt: now.Add(-time.Duration(len(posts)) * publishStep),
		})
	}
	if len(posts) == 0 {
		return nil, &GenerationError{Reason: "no usable items in model response"}
	}

	if _, err := g.posts.InsertPosts(ctx, posts); err != nil {
		return nil, fmt.Errorf("store intelligence posts: %w", err)
	}
	return posts, nil
}

func parseItems(raw string) ([]generatedItem, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, &GenerationError{Reason: "empty model response"}
	}
	var items []generatedItem
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, &GenerationError{Reason: "model response is not a JSON array", Err: err}
	}
	if len(items) == 0 {
		return nil, &GenerationError{Reason: "model returned an empty array"}
	}
	return items, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[newline+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func buildPrompt(now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today is %s. Search the web for industry news published in the last 7 days.\n", now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Return exactly %d items as a JSON array and nothing else. Each item must have these fields:\n", itemsPerCycle)
	b.WriteString(`- "category": one of "industry", "competitor", "supply_chain"` + "\n")
	b.WriteString(`- "title": a concise headline` + "\n")
	b.WriteString(`- "source": the publication or site the news came from` + "\n")
	b.WriteString(`- "summary": two or three sentences describing the news` + "\n")
	b.WriteString(`- "aiInsight": one actionable takeaway for our company` + "\n")
	b.WriteString(`- "tags": an array of 2 to 4 short keywords` + "\n")
	b.WriteString("Cover at least two different categories. Do not invent sources.")
	return b.String()
}
