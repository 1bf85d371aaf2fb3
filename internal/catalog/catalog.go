package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/elastic/go-elasticsearch/v9"
)

var (
	ErrNotFound    = errors.New("product not found")
	ErrUnavailable = errors.New("catalog unavailable")
)

type Config struct {
	URL      string
	User     string
	Password string
	Index    string
}

// Catalog resolves product data for add-to-cart from the product index.
type Catalog struct {
	es    *elasticsearch.Client
	index string
}

func New(es *elasticsearch.Client, index string) *Catalog {
	return &Catalog{es: es, index: index}
}

// Connect builds the Elasticsearch client and checks the cluster answers.
func Connect(ctx context.Context, cfg Config) (*Catalog, error) {
	l := logging.FromContext(ctx).With("component", "catalog", "url", cfg.URL)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("%w: %s: %s", ErrUnavailable, res.Status(), body)
	}

	l.Info("catalog_connected", "index", cfg.Index)
	return New(client, cfg.Index), nil
}

type getResponse struct {
	ID     string         `json:"_id"`
	Found  bool           `json:"found"`
	Source models.Product `json:"_source"`
}

// Lookup fetches one product document by id.
func (c *Catalog) Lookup(ctx context.Context, id string) (models.Product, error) {
	if id == "" {
		return models.Product{}, ErrNotFound
	}

	res, err := c.es.Get(c.index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return models.Product{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return models.Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if res.IsError() {
		return models.Product{}, fmt.Errorf("%w: %s", ErrUnavailable, res.Status())
	}

	var r getResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return models.Product{}, fmt.Errorf("decode product %s: %w", id, err)
	}
	if !r.Found {
		return models.Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if r.Source.ID == "" {
		r.Source.ID = models.ID(r.ID)
	}
	return r.Source, nil
}
