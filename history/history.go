package history

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/Luismorlan/birdnest/model"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrInvalidArgument is returned when the owner id is missing or the bird
// name normalizes to an empty key.
var ErrInvalidArgument = errors.New("owner id and a non-empty bird name are required")

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// BirdSnapshot is the denormalized subject payload recorded on each view.
// Empty fields on a later view do not erase values already stored.
type BirdSnapshot struct {
	BirdName           string  `json:"bird_name"`
	ScientificName     string  `json:"scientific_name"`
	Family             string  `json:"family"`
	BirdOrder          string  `json:"bird_order"`
	ImageUrl           string  `json:"image_url"`
	ConservationStatus string  `json:"conservation_status"`
	Habitat            string  `json:"habitat"`
	Distribution       string  `json:"distribution"`
	Description        string  `json:"description"`
	Confidence         float64 `json:"confidence"`
}

// RecordResult is the outcome of RecordView.
type RecordResult struct {
	Created bool                    `json:"created"`
	Entry   *model.BirdHistoryEntry `json:"entry"`
}

// Stats aggregates a user's whole history in one scan; nothing incremental is
// maintained.
type Stats struct {
	TotalBirds           int            `json:"total_birds"`
	SearchCount          int            `json:"search_count"`
	ImageUploadCount     int            `json:"image_upload_count"`
	UniqueFamiliesCount  int            `json:"unique_families_count"`
	UniqueOrdersCount    int            `json:"unique_orders_count"`
	ConservationStatuses map[string]int `json:"conservation_statuses"`
}

// Service records which birds a user viewed without growing the history on
// repeated views of the same bird. Entries are keyed by the normalized common
// name, so differently formatted spellings of one bird collapse into a single
// entry.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// NormalizeBirdKey derives the history key from a bird's display name:
// lowercase, every run of non-alphanumeric characters collapsed to a single
// hyphen, leading and trailing hyphens trimmed. The result is deterministic
// and idempotent, "Sri Lanka Blue Magpie" and "sri-lanka   blue magpie" both
// map to "sri-lanka-blue-magpie".
func NormalizeBirdKey(name string) string {
	key := nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(key, "-")
}

// RecordView upserts the history entry for (ownerId, subject). The first view
// creates the entry; later views bump ViewCount, refresh LastViewedAt and
// overwrite snapshot fields with any non-empty newer values. FirstViewedAt
// never changes, and SearchType only ever escalates from "search" to "image".
func (s *Service) RecordView(ownerId string, subject BirdSnapshot, viewKind string) (*RecordResult, error) {
	key := NormalizeBirdKey(subject.BirdName)
	if ownerId == "" || key == "" {
		return nil, ErrInvalidArgument
	}

	raw, err := json.Marshal(subject)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "fail to snapshot subject")
	}
	now := time.Now()

	var existing model.BirdHistoryEntry
	res := s.DB.Where("owner_id = ? AND bird_key = ?", ownerId, key).First(&existing)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, res.Error
	}

	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		entry := model.BirdHistoryEntry{
			OwnerID:            ownerId,
			BirdKey:            key,
			BirdName:           subject.BirdName,
			ScientificName:     subject.ScientificName,
			Family:             subject.Family,
			BirdOrder:          subject.BirdOrder,
			ImageUrl:           subject.ImageUrl,
			ConservationStatus: subject.ConservationStatus,
			Habitat:            subject.Habitat,
			Distribution:       subject.Distribution,
			Description:        subject.Description,
			Confidence:         subject.Confidence,
			SearchType:         viewKind,
			FirstViewedAt:      now,
			LastViewedAt:       now,
			ViewCount:          1,
			RawData:            datatypes.JSON(raw),
		}
		if err := s.DB.Create(&entry).Error; err != nil {
			return nil, err
		}
		return &RecordResult{Created: true, Entry: &entry}, nil
	}

	merged := existing
	merged.BirdName = preferNew(subject.BirdName, existing.BirdName)
	merged.ScientificName = preferNew(subject.ScientificName, existing.ScientificName)
	merged.Family = preferNew(subject.Family, existing.Family)
	merged.BirdOrder = preferNew(subject.BirdOrder, existing.BirdOrder)
	merged.ImageUrl = preferNew(subject.ImageUrl, existing.ImageUrl)
	merged.ConservationStatus = preferNew(subject.ConservationStatus, existing.ConservationStatus)
	merged.Habitat = preferNew(subject.Habitat, existing.Habitat)
	merged.Distribution = preferNew(subject.Distribution, existing.Distribution)
	merged.Description = preferNew(subject.Description, existing.Description)
	if subject.Confidence != 0 {
		merged.Confidence = subject.Confidence
	}
	merged.LastViewedAt = now
	merged.ViewCount = existing.ViewCount + 1
	// Image detection is the more specific origin, never degrade back.
	if existing.SearchType == model.SearchTypeSearch && viewKind == model.SearchTypeImage {
		merged.SearchType = model.SearchTypeImage
	}
	merged.RawData = datatypes.JSON(raw)

	// Full row replace: the merged entry was assembled from a fresh read, so
	// FirstViewedAt and prefer-existing fields survive as one unit.
	if err := s.DB.Save(&merged).Error; err != nil {
		return nil, err
	}
	return &RecordResult{Created: false, Entry: &merged}, nil
}

// GetHistory returns up to limit entries, most recently viewed first.
func (s *Service) GetHistory(ownerId string, limit int) ([]*model.BirdHistoryEntry, error) {
	if ownerId == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	var entries []*model.BirdHistoryEntry
	if err := s.DB.Where("owner_id = ?", ownerId).
		Order("last_viewed_at desc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// GetEntry returns one entry by bird key, nil when absent.
func (s *Service) GetEntry(ownerId string, birdKey string) (*model.BirdHistoryEntry, error) {
	if ownerId == "" || birdKey == "" {
		return nil, ErrInvalidArgument
	}
	var entry model.BirdHistoryEntry
	res := s.DB.Where("owner_id = ? AND bird_key = ?", ownerId, birdKey).First(&entry)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &entry, nil
}

// DeleteEntry removes one entry from the owner's history.
func (s *Service) DeleteEntry(ownerId string, birdKey string) error {
	if ownerId == "" || birdKey == "" {
		return ErrInvalidArgument
	}
	return s.DB.Where("owner_id = ? AND bird_key = ?", ownerId, birdKey).
		Delete(&model.BirdHistoryEntry{}).Error
}

// ClearHistory removes the owner's whole history and reports how many entries
// were dropped.
func (s *Service) ClearHistory(ownerId string) (int64, error) {
	if ownerId == "" {
		return 0, ErrInvalidArgument
	}
	res := s.DB.Where("owner_id = ?", ownerId).Delete(&model.BirdHistoryEntry{})
	return res.RowsAffected, res.Error
}

// GetStats aggregates the owner's history with a single full scan.
func (s *Service) GetStats(ownerId string) (*Stats, error) {
	if ownerId == "" {
		return nil, ErrInvalidArgument
	}
	var entries []*model.BirdHistoryEntry
	if err := s.DB.Where("owner_id = ?", ownerId).Find(&entries).Error; err != nil {
		return nil, err
	}

	stats := Stats{ConservationStatuses: map[string]int{}}
	families := map[string]bool{}
	orders := map[string]bool{}
	for _, entry := range entries {
		stats.TotalBirds++
		switch entry.SearchType {
		case model.SearchTypeSearch:
			stats.SearchCount++
		case model.SearchTypeImage:
			stats.ImageUploadCount++
		}
		if entry.Family != "" {
			families[entry.Family] = true
		}
		if entry.BirdOrder != "" {
			orders[entry.BirdOrder] = true
		}
		if entry.ConservationStatus != "" {
			stats.ConservationStatuses[entry.ConservationStatus]++
		}
	}
	stats.UniqueFamiliesCount = len(families)
	stats.UniqueOrdersCount = len(orders)
	return &stats, nil
}

// preferNew keeps the stored value when the newer snapshot is missing the
// field.
func preferNew(newValue string, existing string) string {
	if newValue == "" {
		return existing
	}
	return newValue
}
