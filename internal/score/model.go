package score

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/david/rfp-harvester/internal/models"
)

// ModelScorer asks an external relevance model for a score and falls
// back to rule-based scoring when the service is unavailable. The
// fallback makes the model strictly optional: an unset endpoint means
// every call scores locally.
type ModelScorer struct {
	endpoint string
	client   *http.Client
	fallback Scorer
}

func NewModelScorer(endpoint string, fallback Scorer) *ModelScorer {
	return &ModelScorer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		fallback: fallback,
	}
}

type modelRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	Value       string `json:"value"`
}

type modelResponse struct {
	Score float64 `json:"score"`
}

func (m *ModelScorer) Score(opp models.Opportunity, now time.Time) float64 {
	if m.endpoint == "" {
		return m.fallback.Score(opp, now)
	}
	score, err := m.remoteScore(opp)
	if err != nil {
		log.Printf("[Score] Model scoring failed, using rules: %v", err)
		return m.fallback.Score(opp, now)
	}
	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}

func (m *ModelScorer) remoteScore(opp models.Opportunity) (float64, error) {
	body, err := json.Marshal(modelRequest{
		Title:       opp.Title,
		Description: opp.Description,
		Deadline:    opp.Deadline,
		Value:       opp.Value,
	})
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", m.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("model returned %d", resp.StatusCode)
	}

	var result modelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	return result.Score, nil
}
