package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/support_desk/internal/models"
)

const TicketIndex = "tickets"

// IndexTicket stores a searchable copy of the ticket. Callers treat failures
// as best-effort: the relational store stays the source of truth.
func IndexTicket(ctx context.Context, es *elasticsearch.Client, index string, t *models.Ticket) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("index ticket: %w", err)
	}

	res, err := es.Index(
		index,
		bytes.NewReader(doc),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(t.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("index ticket: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index ticket: %s", res.Status())
	}
	return nil
}

// Search runs a fuzzy multi_match over ticket title and description.
func Search(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []models.Ticket, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Ticket `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	tickets := make([]models.Ticket, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		tickets[i] = hit.Source
	}
	return r.Hits.Total.Value, tickets, nil
}
