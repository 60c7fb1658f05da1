package harvest

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/models"
)

// candidateSelectors are tried in order against each listing page; the
// first one yielding items wins. Trade publication sites change markup
// often, so several generic shapes are attempted.
var candidateSelectors = []string{
	"article",
	".views-row",
	".listing-item",
	".card",
	"li.result",
}

// GovtechPlugin scrapes technology RFP announcements from trade
// publication listing pages.
type GovtechPlugin struct {
	fetcher Fetcher
	urls    []string
}

func NewGovtechPlugin(cfg *config.Config) (Plugin, error) {
	if len(cfg.Scraping.GovtechURLs) == 0 {
		return nil, fmt.Errorf("no govtech URLs configured")
	}
	return &GovtechPlugin{
		fetcher: NewHTTPFetcher(cfg.Scraping),
		urls:    cfg.Scraping.GovtechURLs,
	}, nil
}

func (p *GovtechPlugin) Name() string        { return "govtech_scraper" }
func (p *GovtechPlugin) Description() string { return "Technology RFPs from trade publications" }
func (p *GovtechPlugin) Version() string     { return "2.0" }

func (p *GovtechPlugin) Fetch(ctx context.Context) ([]models.Opportunity, error) {
	var out []models.Opportunity
	var lastErr error
	for _, pageURL := range p.urls {
		opps, err := p.scrapePage(ctx, pageURL)
		if err != nil {
			lastErr = err
			log.Printf("[Govtech] Page %s failed: %v", pageURL, err)
			continue
		}
		out = append(out, opps...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (p *GovtechPlugin) scrapePage(ctx context.Context, pageURL string) ([]models.Opportunity, error) {
	doc, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer doc.Body.Close()

	parsed, err := goquery.NewDocumentFromReader(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	now := time.Now().UTC()
	var out []models.Opportunity
	for _, selector := range candidateSelectors {
		items := parsed.Find(selector)
		if items.Length() == 0 {
			continue
		}
		items.Each(func(_ int, s *goquery.Selection) {
			opp, ok := p.extractItem(s, base, now)
			if ok {
				out = append(out, opp)
			}
		})
		if len(out) > 0 {
			break
		}
	}

	log.Printf("[Govtech] %s yielded %d items", base.Host, len(out))
	return out, nil
}

func (p *GovtechPlugin) extractItem(s *goquery.Selection, base *url.URL, now time.Time) (models.Opportunity, bool) {
	title := strings.TrimSpace(s.Find("h1, h2, h3, .title, a").First().Text())
	if title == "" || len(title) < 10 {
		return models.Opportunity{}, false
	}

	href, _ := s.Find("a[href]").First().Attr("href")
	link := resolveLink(base, href)
	if link == "" {
		return models.Opportunity{}, false
	}

	desc := strings.TrimSpace(s.Find("p, .summary, .teaser").First().Text())
	deadline := models.DeadlineTBD
	if raw := strings.TrimSpace(s.Find("time, .date, .deadline").First().Text()); raw != "" {
		deadline = NormalizeDeadline(raw)
	}

	opp := models.NewOpportunity(title, base.Host, deadline, models.ValueNotSpecified, link)
	opp.Urgency = DeriveUrgency(deadline, now)
	opp.Description = SanitizeDescription(desc)
	opp.Keywords = ExtractKeywords(title, desc)
	return opp, true
}

func resolveLink(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}
