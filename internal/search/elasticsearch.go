package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/albaranes/config"
	"example.com/albaranes/internal/models"
)

// ErrDisabled is returned by every operation of a disabled client
var ErrDisabled = errors.New("search is disabled")

// Document is the indexed form of a delivery note
type Document struct {
	ID          string   `json:"id"`
	Number      string   `json:"number"`
	Date        string   `json:"date"`
	Status      string   `json:"status"`
	Total       string   `json:"total"`
	Notes       string   `json:"notes,omitempty"`
	Items       []string `json:"items"`
	ProjectID   string   `json:"projectId"`
	ProjectName string   `json:"projectName"`
	ClientID    string   `json:"clientId"`
	ClientName  string   `json:"clientName"`
	CreatorID   string   `json:"creatorId"`
	CompanyID   string   `json:"companyId,omitempty"`
	SignedBy    string   `json:"signedBy,omitempty"`
}

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client  *elasticsearch.Client
	config  config.ElasticConfig
	enabled bool
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	if !cfg.Enabled {
		return Disabled(), nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client:  client,
		config:  cfg,
		enabled: true,
	}, nil
}

// Disabled returns a client that indexes nothing and refuses searches
func Disabled() *ElasticClient {
	return &ElasticClient{enabled: false}
}

// Enabled reports whether the client talks to a cluster
func (c *ElasticClient) Enabled() bool {
	return c != nil && c.enabled
}

func (c *ElasticClient) index() string {
	return config.FormatIndex(c.config, c.config.Index)
}

// NewDocument builds the indexed form of a note
func NewDocument(note *models.DeliveryNote, project *models.Project, client *models.Client) Document {
	doc := Document{
		ID:        note.ID.String(),
		Number:    note.Number,
		Date:      note.Date.UTC().Format("2006-01-02T15:04:05Z"),
		Status:    string(note.Status),
		Total:     note.Total.String(),
		Notes:     note.Notes,
		ProjectID: note.ProjectID.String(),
		ClientID:  note.ClientID.String(),
		CreatorID: note.CreatorID.String(),
	}
	if note.CompanyID != nil {
		doc.CompanyID = note.CompanyID.String()
	}
	if note.Signature != nil {
		doc.SignedBy = note.Signature.SignedBy
	}
	if project != nil {
		doc.ProjectName = project.Name
	}
	if client != nil {
		doc.ClientName = client.Name
	}
	for _, item := range note.Items {
		doc.Items = append(doc.Items, item.Description)
	}
	return doc
}

// IndexDeliveryNote indexes or replaces a note document
func (c *ElasticClient) IndexDeliveryNote(ctx context.Context, doc Document) error {
	if !c.Enabled() {
		return nil
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal delivery note document")
	}

	req := esapi.IndexRequest{
		Index:      c.index(),
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index", res.Body)
	}

	log.Debug().Str("delivery_note_id", doc.ID).Msg("Delivery note indexed")
	return nil
}

// DeleteDeliveryNote removes a note document; a missing document is not an error
func (c *ElasticClient) DeleteDeliveryNote(ctx context.Context, id uuid.UUID) error {
	if !c.Enabled() {
		return nil
	}

	req := esapi.DeleteRequest{
		Index:      c.index(),
		DocumentID: id.String(),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete request")
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return responseError("delete", res.Body)
	}
	return nil
}

// BuildQuery builds a full-text query restricted to the notes visible to the user
func BuildQuery(text string, userID uuid.UUID, companyID *uuid.UUID, limit int) map[string]interface{} {
	visibility := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"creatorId.keyword": userID.String()}},
	}
	if companyID != nil {
		visibility = append(visibility,
			map[string]interface{}{"term": map[string]interface{}{"companyId.keyword": companyID.String()}})
	}

	return map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  text,
						"fields": []string{"number^3", "notes", "items", "projectName", "clientName", "signedBy"},
					},
				},
				"filter": map[string]interface{}{
					"bool": map[string]interface{}{
						"should":               visibility,
						"minimum_should_match": 1,
					},
				},
			},
		},
	}
}

// SearchDeliveryNotes runs a full-text search over the notes visible to the user
func (c *ElasticClient) SearchDeliveryNotes(ctx context.Context, text string, userID uuid.UUID, companyID *uuid.UUID, limit int) ([]Document, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	queryJSON, err := json.Marshal(BuildQuery(text, userID, companyID, limit))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.index()},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res.Body)
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]Document, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

func responseError(op string, body io.Reader) error {
	var e map[string]interface{}
	if err := json.NewDecoder(body).Decode(&e); err != nil {
		return errors.Wrap(err, "failed to parse Elasticsearch error response")
	}
	return errors.Errorf("Elasticsearch %s error: %v", op, e)
}
