package search

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"example.com/grocery/services/delivery/config"
	"example.com/grocery/services/delivery/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// IndexProduct indexes a product for storefront search
func (c *ElasticClient) IndexProduct(ctx context.Context, product *models.Product) error {
	doc := map[string]interface{}{
		"id":             product.ID,
		"name":           product.Name,
		"description":    product.Description,
		"category_id":    product.CategoryID,
		"price":          product.Price,
		"stock_quantity": product.StockQuantity,
	}

	return c.index(ctx, config.FormatIndex(c.config, c.config.ProductIndex), strconv.Itoa(product.ID), doc)
}

// DeleteProduct removes a product from the search index
func (c *ElasticClient) DeleteProduct(ctx context.Context, id int) error {
	req := esapi.DeleteRequest{
		Index:      config.FormatIndex(c.config, c.config.ProductIndex),
		DocumentID: strconv.Itoa(id),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete request")
	}
	defer res.Body.Close()

	// A 404 means the product was never indexed; nothing to do
	if res.IsError() && res.StatusCode != 404 {
		return errors.Errorf("Elasticsearch delete error: %s", res.String())
	}
	return nil
}

// SearchProducts runs a full-text query over product names and descriptions
func (c *ElasticClient) SearchProducts(ctx context.Context, query string) ([]map[string]interface{}, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"name^2", "description"},
			},
		},
	}
	return c.search(ctx, config.FormatIndex(c.config, c.config.ProductIndex), body)
}

// OrderDocument is the order projection shape maintained by the worker
type OrderDocument struct {
	OrderID     int       `json:"order_id"`
	UserID      int       `json:"user_id"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	OrderDate   time.Time `json:"order_date"`
	DriverID    *int      `json:"driver_id,omitempty"`
	EventTime   time.Time `json:"event_time"`
}

// IndexOrder writes an order document into the projection index
func (c *ElasticClient) IndexOrder(ctx context.Context, doc OrderDocument) error {
	body := map[string]interface{}{
		"order_id":     doc.OrderID,
		"user_id":      doc.UserID,
		"status":       doc.Status,
		"total_amount": doc.TotalAmount,
		"order_date":   doc.OrderDate,
		"event_time":   doc.EventTime,
	}
	if doc.DriverID != nil {
		body["driver_id"] = *doc.DriverID
	}

	return c.index(ctx, config.FormatIndex(c.config, c.config.OrderIndex), strconv.Itoa(doc.OrderID), body)
}

// UpdateOrderDriver records the assigned driver on the order projection
func (c *ElasticClient) UpdateOrderDriver(ctx context.Context, orderID, driverID int) error {
	body := map[string]interface{}{
		"doc": map[string]interface{}{
			"driver_id": driverID,
		},
	}

	docJSON, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal update document")
	}

	req := esapi.UpdateRequest{
		Index:      config.FormatIndex(c.config, c.config.OrderIndex),
		DocumentID: strconv.Itoa(orderID),
		Body:       bytes.NewReader(docJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch update request")
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.Errorf("Elasticsearch update error: %s", res.String())
	}
	return nil
}

func (c *ElasticClient) index(ctx context.Context, indexName, documentID string, doc map[string]interface{}) error {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal document")
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: documentID,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	// Check for errors in the response
	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Debug().Str("index", indexName).Str("document_id", documentID).Msg("document indexed")
	return nil
}

func (c *ElasticClient) search(ctx context.Context, indexName string, query map[string]interface{}) ([]map[string]interface{}, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	// Check for errors in the response
	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	// Parse the response
	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	// Extract the hits
	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected search result format")
	}

	hitsArray, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, errors.New("unexpected hits format")
	}

	// Extract the documents
	var docs []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}

		docs = append(docs, source)
	}

	return docs, nil
}
