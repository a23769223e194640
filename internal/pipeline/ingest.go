package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"mapaq-pipeline/internal/model"
	"mapaq-pipeline/internal/store"
)

// ------------------- Ingestion -------------------

// Column aliases accepted in source headers, mapped to canonical names.
// The MAPAQ open-data extracts and our own re-exports disagree on naming.
var columnAliases = map[string]string{
	"id":              "id",
	"id_poursuite":    "id",
	"etablissement":   "name",
	"name":            "name",
	"adresse":         "address",
	"address":         "address",
	"date":            "date",
	"date_inspection": "date",
	"status_date":     "date",
	"infractions":     "infractions",
	"description":     "infractions",
	"montant":         "amount",
	"amount":          "amount",
	"statut":          "status",
	"status":          "status",
	"categorie":       "category",
	"category":        "category",
	"taille":          "size",
	"size":            "size",
}

// Columns a source must expose to be ingestable at all.
var requiredColumns = []string{"name", "address", "date"}

// Ingestor loads raw inspection records from a CSV file, an HTTP endpoint,
// or the existing store (source "store:<table>"). Reads are chunked: at most
// batchSize records are loaded per call so large sources stay bounded.
type Ingestor struct {
	Client *http.Client
	Store  *store.Store // only needed for store: sources
}

// Load opens the source and reads up to batchSize records (0 = no bound)
// into a fresh batch. Raw cell values are kept on the record for the
// cleaner to parse; only identity fields are copied out here.
func (ing *Ingestor) Load(ctx context.Context, source string, batchSize int) (*model.Batch, error) {
	fmt.Printf("📥 Ingestion: loading source %s\n", source)

	switch {
	case strings.HasPrefix(source, "store:"):
		return ing.loadFromStore(ctx, strings.TrimPrefix(source, "store:"), batchSize)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return ing.loadFromHTTP(ctx, source, batchSize)
	default:
		return ing.loadFromFile(ctx, source, batchSize)
	}
}

func (ing *Ingestor) loadFromFile(ctx context.Context, path string, batchSize int) (*model.Batch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ErrSourceUnavailable(fmt.Sprintf("cannot open CSV file %s", path), err)
	}
	defer file.Close()
	return ing.readCSV(ctx, path, file, batchSize)
}

func (ing *Ingestor) loadFromHTTP(ctx context.Context, url string, batchSize int) (*model.Batch, error) {
	client := ing.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ErrSourceUnavailable("invalid source URL", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, ErrSourceUnavailable(fmt.Sprintf("GET %s failed", url), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrSourceUnavailable(fmt.Sprintf("GET %s returned %d", url, resp.StatusCode), nil)
	}
	return ing.readCSV(ctx, url, resp.Body, batchSize)
}

func (ing *Ingestor) loadFromStore(ctx context.Context, table string, batchSize int) (*model.Batch, error) {
	if ing.Store == nil {
		return nil, ErrSourceUnavailable("store source requested but no store attached", nil)
	}
	records, err := ing.Store.LoadRecords(ctx, table, batchSize)
	if err != nil {
		return nil, ErrSourceUnavailable(fmt.Sprintf("cannot read table %s", table), err)
	}
	fmt.Printf("📥 Ingestion done: %d records from store table %s\n", len(records), table)
	return &model.Batch{Source: "store:" + table, Records: records}, nil
}

// readCSV parses the header, verifies the required columns are present and
// streams rows one at a time, honoring the chunk bound and cancellation.
func (ing *Ingestor) readCSV(ctx context.Context, source string, r io.Reader, batchSize int) (*model.Batch, error) {
	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return nil, ErrSourceUnavailable("failed to read CSV header", err)
	}

	// Map column index -> canonical name
	columns := make(map[int]string, len(headers))
	seen := make(map[string]bool)
	for i, h := range headers {
		clean := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(h, `"`, "")))
		if canonical, ok := columnAliases[clean]; ok {
			columns[i] = canonical
			seen[canonical] = true
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, ErrSchemaMismatch(fmt.Sprintf("source %s is missing required columns: %s",
			source, strings.Join(missing, ", ")))
	}

	batch := &model.Batch{Source: source}
	for {
		if batchSize > 0 && len(batch.Records) >= batchSize {
			fmt.Printf("📥 Ingestion: chunk bound reached (%d records)\n", batchSize)
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := csvReader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, ErrSourceUnavailable("CSV read error", err)
		}

		raw := make(map[string]string, len(columns))
		for i, canonical := range columns {
			if i < len(row) {
				raw[canonical] = strings.TrimSpace(row[i])
			}
		}
		batch.Records = append(batch.Records, &model.Record{
			ID:         raw["id"],
			Name:       raw["name"],
			RawAddress: raw["address"],
			StatusDate: raw["date"],
			Status:     raw["status"],
			Raw:        raw,
		})
	}

	fmt.Printf("📥 Ingestion done: %d records read from %s\n", len(batch.Records), source)
	return batch, nil
}
