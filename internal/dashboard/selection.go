package dashboard

import (
	"sync"

	"github.com/galeops/windfleet/internal/models"
)

// Map view zoom levels. The overview covers the whole farm set; focus frames
// a single selected farm.
const (
	OverviewZoom = 4
	FocusZoom    = 8
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type MapView struct {
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
}

type MarkerVariant string

const (
	MarkerDefault    MarkerVariant = "default"
	MarkerEmphasized MarkerVariant = "emphasized"
)

// MarkerStyle is the visual variant for one farm marker.
type MarkerStyle struct {
	FarmID  string        `json:"farm_id"`
	Variant MarkerVariant `json:"variant"`
	Scale   float64       `json:"scale"`
	Ring    bool          `json:"ring"`
	Pulse   bool          `json:"pulse"`
}

// Renderer is a pluggable rendering adapter. The controller owns selection
// state; how markers are drawn is injected behind this interface.
type Renderer interface {
	Render(farms []models.WindFarm, styles map[string]MarkerStyle, view MapView) error
}

// Selection owns which single farm (if any) is selected. The map view and
// marker styles are always derived from the selected id, never stored, so the
// two cannot fall out of sync.
type Selection struct {
	mu         sync.Mutex
	farms      []models.WindFarm
	byID       map[string]models.WindFarm
	selectedID string
}

func NewSelection(farms []models.WindFarm) *Selection {
	byID := make(map[string]models.WindFarm, len(farms))
	for _, f := range farms {
		byID[f.FarmID] = f
	}
	return &Selection{farms: farms, byID: byID}
}

// Toggle selects farmID, or clears the selection if farmID is already
// selected. Unknown ids are a no-op. Returns true if the state changed.
func (s *Selection) Toggle(farmID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[farmID]; !ok {
		return false
	}
	if s.selectedID == farmID {
		s.selectedID = ""
	} else {
		s.selectedID = farmID
	}
	return true
}

// SelectedID returns the selected farm id, or "" when nothing is selected.
func (s *Selection) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// View derives the current map center and zoom from the selection.
func (s *Selection) View() MapView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

func (s *Selection) view() MapView {
	if f, ok := s.byID[s.selectedID]; ok {
		return MapView{Center: LatLng{Lat: f.Latitude, Lng: f.Longitude}, Zoom: FocusZoom}
	}
	return s.overview()
}

// overview centers on the centroid of the full farm set.
func (s *Selection) overview() MapView {
	var lat, lng float64
	if len(s.farms) > 0 {
		for _, f := range s.farms {
			lat += f.Latitude
			lng += f.Longitude
		}
		lat /= float64(len(s.farms))
		lng /= float64(len(s.farms))
	}
	return MapView{Center: LatLng{Lat: lat, Lng: lng}, Zoom: OverviewZoom}
}

// MarkerStyles recomputes the style for every farm. The recomputation is
// total: it always covers the whole farm set.
func (s *Selection) MarkerStyles() map[string]MarkerStyle {
	s.mu.Lock()
	defer s.mu.Unlock()

	styles := make(map[string]MarkerStyle, len(s.farms))
	for _, f := range s.farms {
		if f.FarmID == s.selectedID {
			styles[f.FarmID] = MarkerStyle{FarmID: f.FarmID, Variant: MarkerEmphasized, Scale: 1.5, Ring: true, Pulse: true}
		} else {
			styles[f.FarmID] = MarkerStyle{FarmID: f.FarmID, Variant: MarkerDefault, Scale: 1.0}
		}
	}
	return styles
}

// Render draws the current state through the injected adapter.
func (s *Selection) Render(r Renderer) error {
	s.mu.Lock()
	farms := s.farms
	view := s.view()
	s.mu.Unlock()
	return r.Render(farms, s.MarkerStyles(), view)
}

// Farms returns the fixed farm set backing this selection.
func (s *Selection) Farms() []models.WindFarm {
	return s.farms
}
