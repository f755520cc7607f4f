// Package generic adapts the remaining SCACs spec.md lists but does not
// special-case (MSCU, CSFU, SUDU, ANRM, ONEY, OOLU, COSU, HLCU): a
// token-or-OAuth, flat-JSON-body adapter parameterized per SCAC by an
// internal/settings endpoint entry, demonstrating the pattern
// generalizes without five near-duplicate packages.
package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"time"

	"schedulep2p/internal/carriers"
	"schedulep2p/internal/domain"
	"schedulep2p/internal/settings"
	"schedulep2p/pkg/httpclient"
)

type legDoc struct {
	PointFromCode  string `json:"pointFromCode"`
	PointFromName  string `json:"pointFromName"`
	PointToCode    string `json:"pointToCode"`
	PointToName    string `json:"pointToName"`
	ETD            string `json:"etd"`
	ETA            string `json:"eta"`
	VesselName     string `json:"vesselName"`
	TransportType  string `json:"transportType"`
	VesselIMO      string `json:"vesselImo"`
	ServiceCode    string `json:"serviceCode"`
	InternalVoyage string `json:"internalVoyageNumber"`
	ExternalVoyage string `json:"externalVoyageNumber"`
}

type routeDoc struct {
	Legs []legDoc `json:"legs"`
}

type responseDoc struct {
	RoutingDetails []routeDoc `json:"routingDetails"`
}

func mapTransportType(raw string) domain.TransportType {
	switch raw {
	case "Truck":
		return domain.TransportTruck
	case "Feeder":
		return domain.TransportFeeder
	case "Barge":
		return domain.TransportBarge
	case "Rail":
		return domain.TransportRail
	default:
		return domain.TransportVessel
	}
}

func authHeader(ep settings.Endpoint) (string, string) {
	if ep.Auth == settings.AuthOAuthClientCredentials {
		// Generic OAuth carriers are expected to pre-exchange and store a
		// bearer token the same way ZIM does; a future carrier wiring its
		// own token cache can specialize without touching this adapter.
		return "Authorization", "Bearer " + ep.ClientSecret.Reveal()
	}
	return "Authorization", "Bearer " + ep.Token.Reveal()
}

// Fetch queries a generic-family carrier's schedule endpoint.
func Fetch(ctx context.Context, deps carriers.Deps, req domain.SearchRequest, scac domain.CarrierCode) iter.Seq2[domain.Schedule, error] {
	return func(yield func(domain.Schedule, error) bool) {
		ep, ok := deps.Settings.Endpoint(scac)
		if !ok {
			return
		}

		from, to, werr := req.DateWindow()
		if werr != nil {
			return
		}

		params := url.Values{}
		params.Set("polCode", req.Origin)
		params.Set("podCode", req.Destination)
		params.Set("fromDate", from.Format("2006-01-02"))
		params.Set("toDate", to.Format("2006-01-02"))

		hk, hv := authHeader(ep)

		for res, err := range deps.HTTP.Parse(ctx, httpclient.Request{
			URL: ep.URL, Params: params, Headers: map[string]string{hk: hv},
		}, nil) {
			if err != nil {
				deps.Log.Warn("generic: request failed", "scac", scac, "error", err)
				yield(domain.Schedule{}, fmt.Errorf("generic(%s): request: %w", scac, err))
				return
			}
			if res.Doc == nil {
				continue
			}

			var doc responseDoc
			if jerr := json.Unmarshal(res.Doc, &doc); jerr != nil {
				deps.Log.Warn("generic: malformed response", "scac", scac, "error", jerr)
				continue
			}

			for _, r := range doc.RoutingDetails {
				sched, ok := buildSchedule(r, string(scac))
				if !ok {
					continue
				}
				if !carriers.Matches(sched, req.Filters) {
					continue
				}
				if !yield(sched, nil) {
					return
				}
			}
		}
	}
}

func buildSchedule(r routeDoc, scac string) (domain.Schedule, bool) {
	if len(r.Legs) == 0 {
		return domain.Schedule{}, false
	}

	legs := make([]domain.Leg, 0, len(r.Legs))
	for _, l := range r.Legs {
		etd, err1 := time.Parse("2006-01-02T15:04:05", l.ETD)
		eta, err2 := time.Parse("2006-01-02T15:04:05", l.ETA)
		if err1 != nil || err2 != nil {
			return domain.Schedule{}, false
		}

		leg := domain.Leg{
			PointFrom:   domain.PointBase{LocationCode: l.PointFromCode, LocationName: l.PointFromName},
			PointTo:     domain.PointBase{LocationCode: l.PointToCode, LocationName: l.PointToName},
			ETD:         etd,
			ETA:         eta,
			TransitTime: daysBetween(etd, eta),
			Transportations: domain.Transportation{
				TransportType: mapTransportType(l.TransportType),
				TransportName: l.VesselName,
				ReferenceType: "IMO",
				Reference:     l.VesselIMO,
			},
		}
		if l.ServiceCode != "" {
			leg.Services = &domain.Service{ServiceCode: l.ServiceCode}
		}
		if l.InternalVoyage != "" || l.ExternalVoyage != "" {
			leg.Voyages = &domain.Voyage{InternalVoyage: l.InternalVoyage, ExternalVoyage: l.ExternalVoyage}
		}
		legs = append(legs, leg)
	}

	first, last := legs[0], legs[len(legs)-1]
	return domain.Schedule{
		SCAC:          scac,
		PointFrom:     first.PointFrom.LocationCode,
		PointTo:       last.PointTo.LocationCode,
		ETD:           first.ETD,
		ETA:           last.ETA,
		TransitTime:   daysBetween(first.ETD, last.ETA),
		Transshipment: len(legs) > 1,
		Legs:          legs,
	}, true
}

func daysBetween(from, to time.Time) int {
	d := to.Truncate(24 * time.Hour).Sub(from.Truncate(24 * time.Hour))
	return int(d.Hours() / 24)
}
