// Package bigquery streams analytics rows into the configured dataset.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/multierr"
	"google.golang.org/api/googleapi"

	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/logger"
)

const pingTimeout = 10 * time.Second

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errDatasetRequired   = errors.New("bigquery dataset is required")
	errNoTables          = errors.New("no bigquery tables configured")
	errUnknownTable      = errors.New("table is not part of the configured dataset")
	errNotInitialized    = errors.New("bigquery client not initialized")
)

// Client is bound to one dataset and the tables the process writes to.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  map[string]*bigquery.Table
}

// NewClient connects to BigQuery and fails unless the dataset and every
// configured table already exist. Tables are never created here; the
// schema is owned by the analytics migrations.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	names := tableNames(cfg)
	if len(names) == 0 {
		return nil, errNoTables
	}

	bq, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	dataset := bq.Dataset(datasetID)
	c := &Client{bq: bq, dataset: dataset, tables: make(map[string]*bigquery.Table, len(names))}
	for _, name := range names {
		c.tables[name] = dataset.Table(name)
	}

	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"tables":  names,
		}), "bigquery client initialized")
	}
	return c, nil
}

// Put streams rows into table. rows is anything the BigQuery inserter
// accepts: a struct, a ValueSaver, or a slice of either.
func (c *Client) Put(ctx context.Context, table string, rows any) error {
	if c == nil || c.bq == nil {
		return errNotInitialized
	}
	t, ok := c.tables[strings.TrimSpace(table)]
	if !ok {
		return fmt.Errorf("%w: %q", errUnknownTable, table)
	}
	return t.Inserter().Put(ctx, rows)
}

// Ping checks the dataset and each configured table.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describe("dataset", c.dataset.DatasetID, err)
	}
	var errs error
	for name, table := range c.tables {
		if _, err := table.Metadata(ctx); err != nil {
			errs = multierr.Append(errs, describe("table", name, err))
		}
	}
	return errs
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func tableNames(cfg config.BigQueryConfig) []string {
	var names []string
	if name := strings.TrimSpace(cfg.OrderFactsTable); name != "" {
		names = append(names, name)
	}
	return names
}

func describe(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}
