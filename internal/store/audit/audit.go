// internal/store/audit/audit.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/entitlement"
)

// Sink indexes exchange outcomes into Elasticsearch. The trail is what the
// reconciliation job reads to find partial_success exchanges whose debit
// never landed, so every attempt that reached the grant call gets a
// document regardless of outcome.
type Sink struct {
	client *elasticsearch.Client
	index  string
	log    logger.Logger
}

func New(client *elasticsearch.Client, index string, log logger.Logger) *Sink {
	return &Sink{client: client, index: index, log: log}
}

// RecordExchange indexes one exchange record. Best effort: indexing
// failures are logged and swallowed, they never change an exchange result.
func (s *Sink) RecordExchange(ctx context.Context, rec entitlement.ExchangeRecord) {
	body, err := json.Marshal(rec)
	if err != nil {
		s.log.Error("audit record marshal failed", map[string]interface{}{
			"userId": rec.UserID,
			"error":  err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: rec.GrantKey,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		s.log.Error("audit index request failed", map[string]interface{}{
			"userId":   rec.UserID,
			"grantKey": rec.GrantKey,
			"error":    err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		s.log.Error("audit index rejected", map[string]interface{}{
			"userId":   rec.UserID,
			"grantKey": rec.GrantKey,
			"status":   res.Status(),
		})
	}
}

// SearchPartialSuccess returns recorded partial_success exchanges since the
// given time, newest first. Used by the offline reconciliation tooling.
func (s *Sink) SearchPartialSuccess(ctx context.Context, since time.Time, size int) ([]entitlement.ExchangeRecord, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{"term": map[string]interface{}{"result": "partial_success"}},
					{"range": map[string]interface{}{"at": map[string]interface{}{"gte": since.Format(time.RFC3339)}}},
				},
			},
		},
		"sort": []map[string]interface{}{
			{"at": map[string]interface{}{"order": "desc"}},
		},
		"size": size,
	}
	body, _ := json.Marshal(query)

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("audit search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("audit search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source entitlement.ExchangeRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("audit search decode: %w", err)
	}

	records := make([]entitlement.ExchangeRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		records = append(records, hit.Source)
	}
	return records, nil
}
