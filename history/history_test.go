package history

import (
	"os"
	"testing"
	"time"

	"github.com/Luismorlan/birdnest/model"
	"github.com/Luismorlan/birdnest/utils"
	"github.com/Luismorlan/birdnest/utils/dotenv"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dotenv.LoadDotEnvsInTests()
	os.Exit(m.Run())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, _ := utils.CreateTempDB(t)
	utils.TestCreateUserAndValidate(t, db, "owner", "olivia")
	return NewService(db)
}

func blueJay() BirdSnapshot {
	return BirdSnapshot{
		BirdName:           "Blue Jay",
		ScientificName:     "Cyanocitta cristata",
		Family:             "Corvidae",
		BirdOrder:          "Passeriformes",
		ConservationStatus: "Least Concern",
		Habitat:            "Deciduous and coniferous forests",
	}
}

func TestNormalizeBirdKey(t *testing.T) {
	require.Equal(t, "blue-jay", NormalizeBirdKey("Blue Jay"))
	require.Equal(t, "sri-lanka-blue-magpie", NormalizeBirdKey("Sri Lanka Blue Magpie"))
	require.Equal(t, "sri-lanka-blue-magpie", NormalizeBirdKey("sri-lanka   blue magpie"))
	require.Equal(t, "allens-hummingbird", NormalizeBirdKey("Allen's Hummingbird!"))
	require.Equal(t, "", NormalizeBirdKey("  --  "))

	// Idempotent: normalizing a normalized key changes nothing.
	key := NormalizeBirdKey("Sri Lanka Blue Magpie")
	require.Equal(t, key, NormalizeBirdKey(key))
}

func TestRecordViewUpsertIdempotence(t *testing.T) {
	service := newTestService(t)

	first, err := service.RecordView("owner", blueJay(), model.SearchTypeSearch)
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Equal(t, 1, first.Entry.ViewCount)
	require.Equal(t, first.Entry.FirstViewedAt, first.Entry.LastViewedAt)

	second, err := service.RecordView("owner", blueJay(), model.SearchTypeSearch)
	require.NoError(t, err)
	require.False(t, second.Created)
	third, err := service.RecordView("owner", blueJay(), model.SearchTypeSearch)
	require.NoError(t, err)
	require.False(t, third.Created)

	require.Equal(t, 3, third.Entry.ViewCount)
	require.Equal(t, first.Entry.FirstViewedAt.UnixNano(), third.Entry.FirstViewedAt.UnixNano())
	require.True(t, !third.Entry.LastViewedAt.Before(first.Entry.LastViewedAt))

	entries, err := service.GetHistory("owner", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRecordViewCollidesOnNormalizedKey(t *testing.T) {
	service := newTestService(t)

	subject := blueJay()
	subject.BirdName = "Sri Lanka Blue Magpie"
	_, err := service.RecordView("owner", subject, model.SearchTypeSearch)
	require.NoError(t, err)

	subject.BirdName = "sri-lanka   blue magpie"
	result, err := service.RecordView("owner", subject, model.SearchTypeSearch)
	require.NoError(t, err)
	require.False(t, result.Created)
	require.Equal(t, 2, result.Entry.ViewCount)

	entries, err := service.GetHistory("owner", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSearchTypeEscalatesMonotonically(t *testing.T) {
	service := newTestService(t)

	_, err := service.RecordView("owner", blueJay(), model.SearchTypeSearch)
	require.NoError(t, err)
	result, err := service.RecordView("owner", blueJay(), model.SearchTypeImage)
	require.NoError(t, err)
	require.Equal(t, model.SearchTypeImage, result.Entry.SearchType)

	// The reverse never degrades: a later text search keeps "image".
	result, err = service.RecordView("owner", blueJay(), model.SearchTypeSearch)
	require.NoError(t, err)
	require.Equal(t, model.SearchTypeImage, result.Entry.SearchType)
}

func TestMergePrefersExistingForMissingFields(t *testing.T) {
	service := newTestService(t)

	_, err := service.RecordView("owner", blueJay(), model.SearchTypeSearch)
	require.NoError(t, err)

	sparse := BirdSnapshot{
		BirdName: "Blue Jay",
		Habitat:  "Suburban parks",
	}
	result, err := service.RecordView("owner", sparse, model.SearchTypeSearch)
	require.NoError(t, err)

	// Fields absent on the newer snapshot keep their stored values, fields
	// present on it win.
	require.Equal(t, "Cyanocitta cristata", result.Entry.ScientificName)
	require.Equal(t, "Corvidae", result.Entry.Family)
	require.Equal(t, "Suburban parks", result.Entry.Habitat)
}

func TestRecordViewInvalidArguments(t *testing.T) {
	service := newTestService(t)

	_, err := service.RecordView("", blueJay(), model.SearchTypeSearch)
	require.ErrorIs(t, err, ErrInvalidArgument)

	empty := BirdSnapshot{BirdName: "  !!  "}
	_, err = service.RecordView("owner", empty, model.SearchTypeSearch)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetHistoryOrderAndLimit(t *testing.T) {
	service := newTestService(t)

	for _, name := range []string{"Blue Jay", "Common Raven", "Barn Owl"} {
		subject := BirdSnapshot{BirdName: name}
		_, err := service.RecordView("owner", subject, model.SearchTypeSearch)
		require.NoError(t, err)
		// Force distinct view times so the ordering is deterministic.
		require.NoError(t, service.DB.Model(&model.BirdHistoryEntry{}).
			Where("owner_id = ? AND bird_key = ?", "owner", NormalizeBirdKey(name)).
			Update("last_viewed_at", time.Now()).Error)
		time.Sleep(5 * time.Millisecond)
	}

	entries, err := service.GetHistory("owner", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "Barn Owl", entries[0].BirdName)
	require.Equal(t, "Blue Jay", entries[2].BirdName)

	entries, err = service.GetHistory("owner", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestDeleteEntryAndClearHistory(t *testing.T) {
	service := newTestService(t)

	_, err := service.RecordView("owner", blueJay(), model.SearchTypeSearch)
	require.NoError(t, err)
	raven := BirdSnapshot{BirdName: "Common Raven"}
	_, err = service.RecordView("owner", raven, model.SearchTypeSearch)
	require.NoError(t, err)

	require.NoError(t, service.DeleteEntry("owner", "blue-jay"))
	entry, err := service.GetEntry("owner", "blue-jay")
	require.NoError(t, err)
	require.Nil(t, entry)

	deleted, err := service.ClearHistory("owner")
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	entries, err := service.GetHistory("owner", 0)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestGetStats(t *testing.T) {
	service := newTestService(t)

	_, err := service.RecordView("owner", blueJay(), model.SearchTypeSearch)
	require.NoError(t, err)

	raven := BirdSnapshot{
		BirdName:           "Common Raven",
		Family:             "Corvidae",
		BirdOrder:          "Passeriformes",
		ConservationStatus: "Least Concern",
	}
	_, err = service.RecordView("owner", raven, model.SearchTypeImage)
	require.NoError(t, err)

	owl := BirdSnapshot{
		BirdName:           "Barn Owl",
		Family:             "Tytonidae",
		BirdOrder:          "Strigiformes",
		ConservationStatus: "Near Threatened",
	}
	_, err = service.RecordView("owner", owl, model.SearchTypeImage)
	require.NoError(t, err)

	stats, err := service.GetStats("owner")
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalBirds)
	require.Equal(t, 1, stats.SearchCount)
	require.Equal(t, 2, stats.ImageUploadCount)
	require.Equal(t, 2, stats.UniqueFamiliesCount)
	require.Equal(t, 2, stats.UniqueOrdersCount)
	require.Equal(t, map[string]int{"Least Concern": 2, "Near Threatened": 1}, stats.ConservationStatuses)
}
