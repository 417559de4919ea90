// Package export forwards settled ledger transactions to an external webhook in batches.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/liquid-btc-yield/internal/model"
)

// Config holds configuration for the webhook exporter
type Config struct {
	Enabled   bool          `json:"enabled"`
	URL       string        `json:"url"`
	APIKey    string        `json:"api_key,omitempty"`
	BatchSize int           `json:"batch_size"`
	Interval  time.Duration `json:"interval"`
	RetryMax  int           `json:"retry_max"`
}

// Payload is the body POSTed to the webhook
type Payload struct {
	Transactions []model.Transaction `json:"transactions"`
	ExportTime   string              `json:"export_time"`
	Count        int                 `json:"count"`
}

// Status describes the exporter for the status endpoint
type Status struct {
	Enabled      bool      `json:"enabled"`
	BatchSize    int       `json:"batchSize"`
	Interval     string    `json:"interval"`
	CurrentBatch int       `json:"currentBatch"`
	Exported     int       `json:"exported"`
	Failures     int       `json:"failures"`
	LastExport   time.Time `json:"lastExport,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
}

// Exporter batches settled transactions and delivers them to a webhook.
// It implements ledger.Observer.
type Exporter struct {
	config     Config
	httpClient *retryablehttp.Client

	mutex      sync.Mutex
	batch      []model.Transaction
	lastExport time.Time
	lastError  string
	exported   int
	failures   int

	// serialises deliveries so batches arrive in order
	sendMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an exporter. A disabled exporter accepts transactions and drops them.
func New(config Config) (*Exporter, error) {
	e := &Exporter{config: config}
	if !config.Enabled {
		return e, nil
	}
	if config.URL == "" {
		return nil, errors.New("webhook URL not configured")
	}
	if e.config.BatchSize <= 0 {
		e.config.BatchSize = 50
	}
	if e.config.Interval <= 0 {
		e.config.Interval = time.Minute
	}

	c := retryablehttp.NewClient()
	c.RetryMax = config.RetryMax
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = 10 * time.Second
	c.Logger = nil
	e.httpClient = c
	e.batch = make([]model.Transaction, 0, e.config.BatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.periodicExport(ctx)

	logrus.WithFields(logrus.Fields{
		"url":      config.URL,
		"batch":    e.config.BatchSize,
		"interval": e.config.Interval,
	}).Info("Webhook exporter initialized")
	return e, nil
}

// TransactionRecorded implements ledger.Observer; pending transactions are not exported
func (e *Exporter) TransactionRecorded(model.Transaction) {}

// TransactionSettled queues a settled transaction and flushes when the batch is full
func (e *Exporter) TransactionSettled(tx model.Transaction) {
	if !e.config.Enabled {
		return
	}

	e.mutex.Lock()
	e.batch = append(e.batch, tx)
	full := len(e.batch) >= e.config.BatchSize
	e.mutex.Unlock()

	if full {
		go e.Flush(context.Background())
	}
}

func (e *Exporter) periodicExport(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Flush(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logrus.Errorf("Failed to export to webhook: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Flush delivers the queued transactions now. A failed batch is put back at the
// front of the queue for the next attempt.
func (e *Exporter) Flush(ctx context.Context) error {
	if !e.config.Enabled {
		return nil
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	e.mutex.Lock()
	if len(e.batch) == 0 {
		e.mutex.Unlock()
		return nil
	}
	txs := e.batch
	e.batch = make([]model.Transaction, 0, e.config.BatchSize)
	e.mutex.Unlock()

	err := e.send(ctx, txs)

	e.mutex.Lock()
	defer e.mutex.Unlock()
	if err != nil {
		e.failures++
		e.lastError = err.Error()
		e.batch = append(txs, e.batch...)
		return err
	}
	e.exported += len(txs)
	e.lastExport = time.Now()
	e.lastError = ""
	logrus.Infof("Exported %d transactions to webhook", len(txs))
	return nil
}

func (e *Exporter) send(ctx context.Context, txs []model.Transaction) error {
	data, err := json.Marshal(Payload{
		Transactions: txs,
		ExportTime:   time.Now().UTC().Format(time.RFC3339),
		Count:        len(txs),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal transactions: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", e.config.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}
	return nil
}

// Stop ends periodic exports and makes a final delivery attempt
func (e *Exporter) Stop(ctx context.Context) error {
	if !e.config.Enabled {
		return nil
	}
	e.cancel()
	<-e.done
	return e.Flush(ctx)
}

// Status returns the current state of the exporter
func (e *Exporter) Status() Status {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return Status{
		Enabled:      e.config.Enabled,
		BatchSize:    e.config.BatchSize,
		Interval:     e.config.Interval.String(),
		CurrentBatch: len(e.batch),
		Exported:     e.exported,
		Failures:     e.failures,
		LastExport:   e.lastExport,
		LastError:    e.lastError,
	}
}
