package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mapaq-pipeline/internal/dict"
	"mapaq-pipeline/internal/model"
)

type fakeHistory struct {
	counts  map[string]int
	amounts map[string]float64
	err     error
}

func (f *fakeHistory) ViolationHistory(_ context.Context, id string) (int, float64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	return f.counts[id], f.amounts[id], nil
}

func testEnricher(history HistorySource) *Enricher {
	addresses := dict.DefaultAddressDictionary()
	addresses.Geocodes["123 boulevard saint laurent montréal"] = dict.Geocode{Lat: 45.51, Lng: -73.56}
	return &Enricher{
		Themes:    dict.DefaultThemeDictionary(),
		Addresses: addresses,
		History:   history,
	}
}

func TestEnrichDerivesAttributes(t *testing.T) {
	history := &fakeHistory{
		counts:  map[string]int{"REST_00001": 3},
		amounts: map[string]float64{"REST_00001": 450},
	}
	cached := &model.Record{ID: "REST_00001", Name: "Pizzeria Napoli Express", RawAddress: "123 Boul Saint Laurent, Mtl"}
	uncached := &model.Record{ID: "REST_00002", Name: "Le Grand Banquet", RawAddress: "9 rue Inconnue"}

	batch := &model.Batch{Records: []*model.Record{cached, uncached}}
	_, err := testEnricher(history).Enrich(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, "italian", cached.Theme)
	assert.Equal(t, "123 boulevard saint laurent montréal", cached.Address)
	assert.Equal(t, model.AddressResolved, cached.AddressConfidence)
	assert.Equal(t, "small", cached.SizeClass, "'express' names estimate small")
	assert.Equal(t, 3, cached.PriorViolations)
	assert.Equal(t, 450.0, cached.PriorAmount)

	assert.Equal(t, dict.ThemeUnknown, uncached.Theme)
	assert.Equal(t, model.AddressUnresolved, uncached.AddressConfidence)
	assert.Equal(t, "large", uncached.SizeClass)
	assert.Equal(t, 0, uncached.PriorViolations)
}

func TestEnrichKeepsExplicitSizeClass(t *testing.T) {
	rec := &model.Record{ID: "REST_00001", Name: "Snack Bar Y", SizeClass: "large"}
	_, err := testEnricher(nil).Enrich(context.Background(), &model.Batch{Records: []*model.Record{rec}})
	require.NoError(t, err)
	assert.Equal(t, "large", rec.SizeClass, "source size wins over the name heuristic")
}

func TestEnrichHistoryOutageFailsStage(t *testing.T) {
	history := &fakeHistory{err: errors.New("database is locked")}
	batch := &model.Batch{Records: []*model.Record{{ID: "REST_00001", Name: "Bar X"}}}

	_, err := testEnricher(history).Enrich(context.Background(), batch)
	require.Error(t, err)
	assert.Equal(t, KindSourceUnavailable, Kind(err))
	assert.True(t, IsRetryable(err), "a history outage is worth retrying")
}

func TestEnrichHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := make([]*model.Record, 50)
	for i := range records {
		records[i] = &model.Record{ID: "REST_00001", Name: "Bar X"}
	}
	_, err := testEnricher(nil).Enrich(ctx, &model.Batch{Records: records})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEstimateSize(t *testing.T) {
	assert.Equal(t, "small", estimateSize("Casse-croûte chez Ti-Guy"))
	assert.Equal(t, "large", estimateSize("Palace Royal"))
	assert.Equal(t, "medium", estimateSize("Chez Maurice"))
}
