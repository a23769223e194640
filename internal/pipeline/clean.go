package pipeline

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"mapaq-pipeline/internal/model"
)

// ------------------- Cleaning -------------------

// Date layouts accepted in source data, tried in order. Everything is
// rewritten to model.DateLayout on the way through.
var acceptedDateLayouts = []string{
	model.DateLayout,
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"2006-01-02 15:04:05",
}

// Default applied to a missing status. A missing amount simply stays at
// zero: no fine recorded.
const defaultStatus = "Conforme"

// Cleaner normalizes raw records in place: canonical dates, trimmed and
// consistently cased text, exact-duplicate removal (same id + status date),
// documented defaults for missing optional fields. Records missing required
// fields are flagged for validation, never silently dropped. The only hard
// per-record failure is an unparsable required amount (malformed input).
type Cleaner struct{}

// Clean runs the full normalization pass and returns the same batch.
func (c *Cleaner) Clean(batch *model.Batch) (*model.Batch, error) {
	malformed := 0
	for _, rec := range batch.Records {
		c.normalize(rec)
		if err := c.parseAmount(rec); err != nil {
			rec.Fail(model.StageCleaning, err.Error())
			malformed++
		}
		c.applyDefaults(rec)
		c.flagMissingRequired(rec)
	}

	before := len(batch.Records)
	batch.Records = dedupe(batch.Records)

	fmt.Printf("🧹 Cleaning done: %d records in, %d duplicates removed, %d malformed\n",
		before, before-len(batch.Records), malformed)
	return batch, nil
}

func (c *Cleaner) normalize(rec *model.Record) {
	rec.Name = collapseSpaces(rec.Name)
	rec.RawAddress = collapseSpaces(rec.RawAddress)
	rec.Status = collapseSpaces(rec.Status)
	rec.StatusDate = canonicalDate(rec.StatusDate)

	if rec.Raw != nil {
		rec.Violations = countViolations(rec.Raw["infractions"])
		if size := strings.ToLower(strings.TrimSpace(rec.Raw["size"])); size != "" {
			switch size {
			case "small", "petit":
				rec.SizeClass = "small"
			case "large", "grand":
				rec.SizeClass = "large"
			default:
				rec.SizeClass = "medium"
			}
		}
	}

	// A stable identifier is required downstream; derive one from the
	// establishment identity when the source has none.
	if rec.ID == "" && rec.Name != "" && rec.RawAddress != "" {
		rec.ID = deriveID(rec.Name, rec.RawAddress)
	}
}

// parseAmount converts the raw fine amount. Empty is fine (default applies);
// a non-numeric value is malformed input and fails the record.
func (c *Cleaner) parseAmount(rec *model.Record) error {
	if rec.Raw == nil {
		return nil
	}
	raw := strings.TrimSpace(rec.Raw["amount"])
	if raw == "" {
		return nil
	}
	raw = strings.NewReplacer("$", "", " ", "", ",", ".").Replace(raw)
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ErrMalformedInput(fmt.Sprintf("record %s: non-numeric amount %q", rec.ID, rec.Raw["amount"]), err)
	}
	rec.Amount = amount
	return nil
}

func (c *Cleaner) applyDefaults(rec *model.Record) {
	if rec.Status == "" {
		rec.Status = defaultStatus
	}
}

// flagMissingRequired records absent required fields so the validator can
// fail the record later with a named rule instead of dropping it here.
func (c *Cleaner) flagMissingRequired(rec *model.Record) {
	rec.MissingFields = rec.MissingFields[:0]
	if rec.Name == "" {
		rec.MissingFields = append(rec.MissingFields, "name")
	}
	if rec.RawAddress == "" {
		rec.MissingFields = append(rec.MissingFields, "address")
	}
	if rec.StatusDate == "" {
		rec.MissingFields = append(rec.MissingFields, "status_date")
	}
}

// dedupe removes exact duplicates (same id + same status date), keeping the
// first occurrence to preserve batch order.
func dedupe(records []*model.Record) []*model.Record {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, rec := range records {
		key := rec.ID + "|" + rec.StatusDate
		if rec.ID != "" && seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}
	return out
}

func canonicalDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(model.DateLayout)
		}
	}
	// Leave unparsable dates untouched; the date-format rule flags them.
	return s
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}

func countViolations(infractions string) int {
	count := 0
	for _, part := range strings.Split(infractions, ",") {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}

func deriveID(name, address string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(name + address)))
	return fmt.Sprintf("REST_%05d", h.Sum32()%100000)
}
