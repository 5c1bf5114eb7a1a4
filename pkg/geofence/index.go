package geofence

import (
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/fieldclock/fieldclock/pkg/geo"
)

const (
	indexDimensions  = 2
	indexMinChildren = 25
	indexMaxChildren = 50
)

// Index is a thread-safe R-tree over area bounding boxes. Containment
// evaluation pre-filters candidates through it so a deployment with many
// sites does not scan every polygon per clock-in.
type Index struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
	all  map[string]*Area
}

// NewIndex creates an empty area index.
func NewIndex() *Index {
	return &Index{
		tree: rtreego.NewTree(indexDimensions, indexMinChildren, indexMaxChildren),
		all:  make(map[string]*Area),
	}
}

// Rebuild replaces the index contents with the given areas.
func (ix *Index) Rebuild(areas []*Area) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.tree = rtreego.NewTree(indexDimensions, indexMinChildren, indexMaxChildren)
	ix.all = make(map[string]*Area, len(areas))
	for _, area := range areas {
		ix.tree.Insert(area)
		ix.all[area.ID] = area
	}
}

// Upsert adds or replaces a single area.
func (ix *Index) Upsert(area *Area) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.all[area.ID]; ok {
		ix.tree.Delete(prev)
	}
	ix.tree.Insert(area)
	ix.all[area.ID] = area
}

// Remove deletes an area by id.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if prev, ok := ix.all[id]; ok {
		ix.tree.Delete(prev)
		delete(ix.all, id)
	}
}

// Candidates returns areas whose padded bounding boxes contain the point, in
// creation order so first-match-wins evaluation stays deterministic.
func (ix *Index) Candidates(p geo.Point) []*Area {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	rect, err := rtreego.NewRect(rtreego.Point{p.Lat, p.Lng}, []float64{1e-9, 1e-9})
	if err != nil {
		return nil
	}

	hits := ix.tree.SearchIntersect(rect)
	areas := make([]*Area, 0, len(hits))
	for _, hit := range hits {
		if area, ok := hit.(*Area); ok {
			areas = append(areas, area)
		}
	}

	sort.Slice(areas, func(i, j int) bool {
		return areas[i].CreatedAt.Before(areas[j].CreatedAt)
	})
	return areas
}

// Len returns the number of indexed areas.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.all)
}
