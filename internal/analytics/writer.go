package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultAttempts   = 3
	defaultBaseDelay  = 250 * time.Millisecond
	defaultDelayLimit = 2 * time.Second
)

type inserter interface {
	Put(ctx context.Context, table string, rows any) error
}

// WriterConfig tunes how inserts into the order facts table are retried.
type WriterConfig struct {
	Table      string
	Attempts   int
	BaseDelay  time.Duration
	DelayLimit time.Duration
}

// Writer streams order facts into BigQuery, retrying transient failures.
type Writer struct {
	client inserter
	cfg    WriterConfig
}

func NewWriter(client inserter, cfg WriterConfig) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	cfg.Table = strings.TrimSpace(cfg.Table)
	if cfg.Table == "" {
		return nil, errors.New("order facts table required")
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.DelayLimit < cfg.BaseDelay {
		cfg.DelayLimit = max(defaultDelayLimit, cfg.BaseDelay)
	}
	return &Writer{client: client, cfg: cfg}, nil
}

// Write inserts facts as one request.
func (w *Writer) Write(ctx context.Context, facts ...OrderFact) error {
	if len(facts) == 0 {
		return nil
	}
	rows := make([]bigquery.ValueSaver, len(facts))
	for i := range facts {
		rows[i] = facts[i]
	}

	err := retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
		err := w.client.Put(ctx, w.cfg.Table, rows)
		if err != nil && retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("insert into %s: %w", w.cfg.Table, err)
	}
	return nil
}

func (w *Writer) backoff() retry.Backoff {
	b := retry.NewExponential(w.cfg.BaseDelay)
	b = retry.WithCappedDuration(w.cfg.DelayLimit, b)
	return retry.WithMaxRetries(uint64(w.cfg.Attempts-1), b)
}

// retryable reports whether every part of err is a transient BigQuery
// failure. A single row rejected for its content makes the whole insert
// permanent.
func retryable(err error) bool {
	var multi bigquery.MultiError
	if errors.As(err, &multi) {
		return allRetryable(multi)
	}
	var put bigquery.PutMultiError
	if errors.As(err, &put) {
		if len(put) == 0 {
			return false
		}
		for _, rowErr := range put {
			if !allRetryable(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
			codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func allRetryable(errs bigquery.MultiError) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if !retryable(e) {
			return false
		}
	}
	return true
}
