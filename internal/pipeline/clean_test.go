package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapaq-pipeline/internal/model"
)

func TestCleanNormalizes(t *testing.T) {
	batch := &model.Batch{Records: []*model.Record{{
		Name:       "  Pizzeria   Napoli ",
		RawAddress: " 123  rue Principale ",
		Status:     " Non  conforme ",
		StatusDate: "15/03/2024",
		Raw: map[string]string{
			"infractions": "temp control, hygiene",
			"amount":      "1 250,00 $",
			"size":        "Petit",
		},
	}}}

	out, err := (&Cleaner{}).Clean(batch)
	require.NoError(t, err)
	rec := out.Records[0]

	assert.Equal(t, "Pizzeria Napoli", rec.Name)
	assert.Equal(t, "123 rue Principale", rec.RawAddress)
	assert.Equal(t, "Non conforme", rec.Status)
	assert.Equal(t, "2024-03-15", rec.StatusDate)
	assert.Equal(t, 2, rec.Violations)
	assert.Equal(t, 1250.0, rec.Amount)
	assert.Equal(t, "small", rec.SizeClass)
	assert.False(t, rec.Failed)
	assert.Empty(t, rec.MissingFields)
}

func TestCleanDerivesStableID(t *testing.T) {
	a := &model.Record{Name: "Chez Maurice", RawAddress: "1 rue A", StatusDate: "2024-01-01"}
	b := &model.Record{Name: "Chez Maurice", RawAddress: "1 rue A", StatusDate: "2024-02-01"}
	c := &model.Record{Name: "Chez Denise", RawAddress: "2 rue B", StatusDate: "2024-01-01"}

	_, err := (&Cleaner{}).Clean(&model.Batch{Records: []*model.Record{a, b, c}})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.ID, "REST_"))
	assert.Equal(t, a.ID, b.ID, "same establishment must get the same identifier")
	assert.NotEqual(t, a.ID, c.ID)
}

func TestCleanRemovesExactDuplicates(t *testing.T) {
	dup := func() *model.Record {
		return &model.Record{ID: "REST_00001", Name: "Chez Maurice", RawAddress: "1 rue A", StatusDate: "2024-01-01"}
	}
	reinspection := &model.Record{ID: "REST_00001", Name: "Chez Maurice", RawAddress: "1 rue A", StatusDate: "2024-03-01"}

	out, err := (&Cleaner{}).Clean(&model.Batch{Records: []*model.Record{dup(), dup(), reinspection}})
	require.NoError(t, err)

	// Same id + same date collapses; a re-inspection on another date stays.
	require.Len(t, out.Records, 2)
	assert.Equal(t, "2024-01-01", out.Records[0].StatusDate)
	assert.Equal(t, "2024-03-01", out.Records[1].StatusDate)
}

func TestCleanMalformedAmountFailsRecord(t *testing.T) {
	rec := &model.Record{
		ID: "REST_00002", Name: "Bar X", RawAddress: "2 rue B", StatusDate: "2024-01-01",
		Raw: map[string]string{"amount": "twelve dollars"},
	}
	_, err := (&Cleaner{}).Clean(&model.Batch{Records: []*model.Record{rec}})
	require.NoError(t, err, "a malformed record never aborts the batch")

	assert.True(t, rec.Failed)
	assert.Equal(t, model.StageCleaning, rec.FailStage)
	assert.Contains(t, rec.FailReason, KindMalformedInput)
}

func TestCleanDefaultsAndMissingFields(t *testing.T) {
	rec := &model.Record{RawAddress: "3 rue C", StatusDate: "2024-01-01"}
	_, err := (&Cleaner{}).Clean(&model.Batch{Records: []*model.Record{rec}})
	require.NoError(t, err)

	assert.Equal(t, "Conforme", rec.Status, "missing status gets the documented default")
	assert.Equal(t, 0.0, rec.Amount, "missing amount means no fine recorded")
	assert.False(t, rec.Failed, "missing required fields are flagged, not failed here")
	assert.Equal(t, []string{"name"}, rec.MissingFields)
}

func TestCanonicalDate(t *testing.T) {
	assert.Equal(t, "2024-03-15", canonicalDate("2024-03-15"))
	assert.Equal(t, "2024-03-15", canonicalDate("2024/03/15"))
	assert.Equal(t, "2024-03-15", canonicalDate("15/03/2024"))
	assert.Equal(t, "2024-03-15", canonicalDate("15-03-2024"))
	assert.Equal(t, "2024-03-15", canonicalDate("2024-03-15 10:30:00"))
	// Unparsable dates pass through for the date-format rule to flag.
	assert.Equal(t, "mars 2024", canonicalDate("mars 2024"))
	assert.Equal(t, "", canonicalDate("   "))
}
