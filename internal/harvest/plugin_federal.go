package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/david/rfp-harvester/internal/config"
	"github.com/david/rfp-harvester/internal/models"
)

// FederalPlugin pulls open solicitations from the Grants.gov search2
// API, one page per keyword.
type FederalPlugin struct {
	client   *http.Client
	baseURL  string
	keywords []string
	rows     int
}

func NewFederalPlugin(cfg *config.Config) (Plugin, error) {
	return &FederalPlugin{
		client: &http.Client{
			Timeout: time.Duration(cfg.Scraping.TimeoutSeconds) * time.Second,
		},
		baseURL:  "https://api.grants.gov/v1/api/search2",
		keywords: []string{"payment technology", "fintech", "digital services"},
		rows:     50,
	}, nil
}

func (p *FederalPlugin) Name() string        { return "federal_opportunities" }
func (p *FederalPlugin) Description() string { return "Federal opportunities from Grants.gov" }
func (p *FederalPlugin) Version() string     { return "2.0" }

type federalSearchRequest struct {
	Keyword        string `json:"keyword"`
	OppStatuses    string `json:"oppStatuses"`
	SortBy         string `json:"sortBy"`
	Rows           int    `json:"rows"`
	StartRecordNum int    `json:"startRecordNum"`
}

type federalResponse struct {
	Data struct {
		HitCount int             `json:"hitCount"`
		OppHits  []federalRecord `json:"oppHits"`
	} `json:"data"`
	ErrorCode int    `json:"errorcode"`
	Msg       string `json:"msg"`
}

type federalRecord struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Title     string `json:"title"`
	Agency    string `json:"agency"`
	CloseDate string `json:"closeDate"`
	OppStatus string `json:"oppStatus"`
}

// Fetch queries each keyword and converts the hits. Duplicate records
// across keywords are left in; the scoring stage deduplicates.
func (p *FederalPlugin) Fetch(ctx context.Context) ([]models.Opportunity, error) {
	var out []models.Opportunity
	var lastErr error
	for _, kw := range p.keywords {
		opps, err := p.searchKeyword(ctx, kw)
		if err != nil {
			lastErr = err
			log.Printf("[Federal] Keyword %q failed: %v", kw, err)
			continue
		}
		out = append(out, opps...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func (p *FederalPlugin) searchKeyword(ctx context.Context, keyword string) ([]models.Opportunity, error) {
	body, err := json.Marshal(federalSearchRequest{
		Keyword:        keyword,
		OppStatuses:    "posted",
		SortBy:         "openDate|desc",
		Rows:           p.rows,
		StartRecordNum: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(raw))
	}

	var apiResp federalResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if apiResp.ErrorCode != 0 {
		return nil, fmt.Errorf("API error: %s", apiResp.Msg)
	}

	log.Printf("[Federal] Keyword %q: %d hits (total %d)", keyword, len(apiResp.Data.OppHits), apiResp.Data.HitCount)

	now := time.Now().UTC()
	var out []models.Opportunity
	for _, rec := range apiResp.Data.OppHits {
		if rec.Title == "" {
			continue
		}
		// CloseDate arrives as MM/DD/YYYY; expired records are skipped.
		deadline := NormalizeDeadline(rec.CloseDate)
		if t, err := time.Parse("2006-01-02", deadline); err == nil {
			if t.Add(24 * time.Hour).Before(now) {
				continue
			}
		}

		desc := fmt.Sprintf("Federal solicitation %s from %s, status %s.", rec.Number, rec.Agency, rec.OppStatus)
		value := models.ValueNotSpecified
		// Detail failures only cost us the description and award value.
		if details, err := p.fetchDetails(ctx, rec.ID); err == nil {
			if syn, ok := details["synopsis"].(map[string]any); ok {
				if d, ok := syn["synopsisDesc"].(string); ok && d != "" {
					desc = d
				}
				if ceiling, ok := syn["awardCeiling"].(string); ok {
					if amount, ok := parseAmount(ceiling); ok {
						value = FormatValue(amount)
					}
				}
			}
		}

		opp := models.NewOpportunity(
			rec.Title,
			rec.Agency,
			deadline,
			value,
			"https://www.grants.gov/search-results-detail/"+rec.ID,
		)
		opp.Urgency = DeriveUrgency(deadline, now)
		opp.Description = SanitizeDescription(desc)
		opp.Keywords = ExtractKeywords(rec.Title, desc)
		out = append(out, opp)
	}
	return out, nil
}

func (p *FederalPlugin) fetchDetails(ctx context.Context, oppID string) (map[string]any, error) {
	body, _ := json.Marshal(map[string]string{"id": oppID})
	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.grants.gov/v1/api/fetchOpportunity", strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// parseAmount turns "$1,500,000" style strings into a float, for
// detail responses that include award ceilings.
func parseAmount(raw string) (float64, bool) {
	clean := strings.ReplaceAll(strings.ReplaceAll(raw, "$", ""), ",", "")
	v, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
