package harvest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/models"
)

// StatePlugin crawls state procurement portals with colly. Portals are
// listed in the scraping config; each is visited once per run.
type StatePlugin struct {
	urls      []string
	userAgent string
	timeout   time.Duration
}

func NewStatePlugin(cfg *config.Config) (Plugin, error) {
	if len(cfg.Scraping.StateURLs) == 0 {
		return nil, fmt.Errorf("no state portal URLs configured")
	}
	return &StatePlugin{
		urls:      cfg.Scraping.StateURLs,
		userAgent: cfg.Scraping.UserAgent,
		timeout:   time.Duration(cfg.Scraping.TimeoutSeconds) * time.Second,
	}, nil
}

func (p *StatePlugin) Name() string        { return "state_procurement" }
func (p *StatePlugin) Description() string { return "State procurement portal solicitations" }
func (p *StatePlugin) Version() string     { return "2.0" }

func (p *StatePlugin) Fetch(ctx context.Context) ([]models.Opportunity, error) {
	var (
		mu  sync.Mutex
		out []models.Opportunity
	)
	now := time.Now().UTC()

	c := colly.NewCollector(
		colly.UserAgent(p.userAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(p.timeout)
	c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: time.Second})

	// Procurement portals usually render solicitations as table rows.
	c.OnHTML("table tr", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText("td:nth-child(1), th:nth-child(1)"))
		if title == "" || len(title) < 10 {
			return
		}
		href := e.ChildAttr("a[href]", "href")
		if href == "" {
			return
		}
		link := e.Request.AbsoluteURL(href)
		if link == "" {
			return
		}

		deadline := NormalizeDeadline(e.ChildText("td:nth-child(3)"))
		desc := strings.TrimSpace(e.ChildText("td:nth-child(2)"))

		opp := models.NewOpportunity(title, e.Request.URL.Host, deadline, models.ValueNotSpecified, link)
		opp.Urgency = DeriveUrgency(deadline, now)
		opp.Description = SanitizeDescription(desc)
		opp.Keywords = ExtractKeywords(title, desc)

		mu.Lock()
		out = append(out, opp)
		mu.Unlock()
	})

	var errs []string
	c.OnError(func(r *colly.Response, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", r.Request.URL, err))
	})

	for _, portal := range p.urls {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
		if err := c.Visit(portal); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", portal, err))
		}
	}
	c.Wait()

	log.Printf("[State] %d portals visited, %d solicitations, %d errors", len(p.urls), len(out), len(errs))
	if len(out) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all portals failed: %s", strings.Join(errs, "; "))
	}
	return out, nil
}
