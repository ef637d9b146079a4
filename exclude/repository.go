package exclude

import (
	"errors"
	"fmt"
)

// ErrRegionNotFound is returned when a delete or replace names an id no
// defined region carries.
var ErrRegionNotFound = errors.New("exclude: region not found")

// Repository owns the set of defined exclusion regions.  It provides no
// internal locking; callers mutating it concurrently with stream processing
// must serialize access themselves.
type Repository struct {
	regions []Region
}

// NewRepository builds an empty region repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Get retrieves the region with the given id, or nil if none matches.
func (r *Repository) Get(id string) Region {
	for _, region := range r.regions {
		if region.ID() == id {
			return region
		}
	}
	return nil
}

// All returns the defined regions in definition order.  The returned slice
// must not be modified.
func (r *Repository) All() []Region {
	return r.regions
}

// Len returns the number of defined regions.
func (r *Repository) Len() int {
	return len(r.regions)
}

// Clear removes all defined regions.
func (r *Repository) Clear() {
	r.regions = nil
}

// Add defines a new region, failing on an id collision.
func (r *Repository) Add(region Region) error {
	if r.Get(region.ID()) != nil {
		return fmt.Errorf("exclude: region id collision: %s", region.ID())
	}
	r.regions = append(r.regions, region)
	return nil
}

// Delete removes the region with the given id, reporting whether it existed.
func (r *Repository) Delete(id string) bool {
	for i, region := range r.regions {
		if region.ID() == id {
			r.regions = append(r.regions[:i], r.regions[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps an existing region for a new one with the same id.  When
// mustContainOld is set (a print is active), the new region must fully
// contain the old one, so already-skipped geometry cannot become printable
// mid-print.
func (r *Repository) Replace(newRegion Region, mustContainOld bool) error {
	if newRegion.ID() == "" {
		return errors.New("exclude: id is required for replacement region")
	}

	for i, region := range r.regions {
		if region.ID() != newRegion.ID() {
			continue
		}
		if mustContainOld && !newRegion.ContainsRegion(region) {
			return fmt.Errorf(
				"exclude: replacement region %v must fully contain the region it replaces (%v)",
				newRegion, region)
		}
		r.regions[i] = newRegion
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRegionNotFound, newRegion.ID())
}

// AnyContains reports whether any defined region contains the given point.
func (r *Repository) AnyContains(x, y, z float64) bool {
	for _, region := range r.regions {
		if region.ContainsPoint(x, y, z) {
			return true
		}
	}
	return false
}
