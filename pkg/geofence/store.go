package geofence

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/fieldclock/fieldclock/pkg/logx"
)

var areasBucket = []byte("areas")

// Store persists area definitions in a local bbolt database so a kiosk keeps
// authoritative geofences across restarts and network outages.
type Store struct {
	db     *bbolt.DB
	logger *logx.Logger
}

// OpenStore opens (creating if needed) the area database at path.
func OpenStore(path string, logger *logx.Logger) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open area store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(areasBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize area store: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Put validates and persists an area.
func (s *Store) Put(area *Area) error {
	if area.ID == "" {
		return fmt.Errorf("area id is required")
	}
	if err := area.Shape.Validate(); err != nil {
		return fmt.Errorf("invalid area %q: %w", area.ID, err)
	}

	raw, err := json.Marshal(area)
	if err != nil {
		return fmt.Errorf("failed to encode area %q: %w", area.ID, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(areasBucket).Put([]byte(area.ID), raw)
	})
	if err != nil {
		return fmt.Errorf("failed to persist area %q: %w", area.ID, err)
	}

	s.logger.Info("area persisted",
		"id", area.ID,
		"name", area.Name,
		"kind", string(area.Shape.Kind),
		"active", area.Active)
	return nil
}

// Get loads one area by id. Returns (nil, nil) when absent.
func (s *Store) Get(id string) (*Area, error) {
	var area *Area
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(areasBucket).Get([]byte(id))
		if raw == nil {
			return nil
		}
		area = &Area{}
		return json.Unmarshal(raw, area)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load area %q: %w", id, err)
	}
	return area, nil
}

// List returns all areas ordered by creation time, the order containment
// evaluation honors for first-match-wins.
func (s *Store) List() ([]*Area, error) {
	var areas []*Area
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(areasBucket).ForEach(func(_, raw []byte) error {
			area := &Area{}
			if err := json.Unmarshal(raw, area); err != nil {
				return err
			}
			areas = append(areas, area)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list areas: %w", err)
	}

	sort.Slice(areas, func(i, j int) bool {
		return areas[i].CreatedAt.Before(areas[j].CreatedAt)
	})
	return areas, nil
}

// Delete removes an area by id. Missing ids are not an error.
func (s *Store) Delete(id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(areasBucket).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete area %q: %w", id, err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
