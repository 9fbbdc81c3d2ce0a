package models

import "zeinbus/internal/booking"

// Area is a service region with its pickup points.
type Area struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Places []booking.PricePoint `json:"places"`
}

// FindArea returns the area with the given name.
func FindArea(areas []Area, name string) *Area {
	for i := range areas {
		if areas[i].Name == name {
			return &areas[i]
		}
	}
	return nil
}

// PlaceNames lists the pickup points of the area in backend order.
func (a *Area) PlaceNames() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.Places))
	for _, p := range a.Places {
		names = append(names, p.Name)
	}
	return names
}
