// Package carriers holds the filter predicate shared identically by every
// carrier adapter (spec.md §4.E), the Deps bundle the adapters receive, and
// the Collect helper that drains an adapter's sequence. Transport-type
// mapping is done inside each per-carrier package.
package carriers

import "schedulep2p/internal/domain"

// Matches reports whether schedule s survives the caller's Filters,
// applying each sub-filter exactly as spec.md §4.E defines it.
func Matches(s domain.Schedule, f domain.Filters) bool {
	if f.ServiceCode != "" && !hasServiceCode(s, f.ServiceCode) {
		return false
	}
	if f.VesselIMO != "" && !hasVesselIMO(s, f.VesselIMO) {
		return false
	}
	if f.TransshipmentPort != "" && !hasTransshipmentPort(s, f.TransshipmentPort) {
		return false
	}
	switch f.DirectOnly {
	case domain.DirectOnlyTrue:
		if len(s.Legs) != 1 {
			return false
		}
	case domain.DirectOnlyFalse:
		if len(s.Legs) <= 1 {
			return false
		}
	}
	return true
}

func hasServiceCode(s domain.Schedule, code string) bool {
	for _, leg := range s.Legs {
		if leg.Services != nil && leg.Voyages != nil && leg.Services.ServiceCode == code {
			return true
		}
	}
	return false
}

func hasVesselIMO(s domain.Schedule, imo string) bool {
	for _, leg := range s.Legs {
		if leg.Transportations.ReferenceType == "IMO" && leg.Transportations.Reference == imo {
			return true
		}
	}
	return false
}

// hasTransshipmentPort keeps the route iff it is a transshipment route
// (more than one leg) and some non-first leg departs from the TSP code.
func hasTransshipmentPort(s domain.Schedule, tsp string) bool {
	if len(s.Legs) <= 1 {
		return false
	}
	for _, leg := range s.Legs[1:] {
		if leg.PointFrom.LocationCode == tsp {
			return true
		}
	}
	return false
}
