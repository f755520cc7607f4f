// Package maersk adapts the Maersk family's newline-delimited streaming
// JSON protocol (MAEU, SEAU, SEJJ, MCPU, MAEI — spec.md §6) into the
// unified schema. One SCAC-parameterized adapter covers the whole family
// instead of five near-duplicate packages.
package maersk

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"time"

	"schedulep2p/internal/carriers"
	"schedulep2p/internal/domain"
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

// streamRecord is one line of the NDJSON body: one route per record.
type streamRecord struct {
	Legs []legDoc `json:"legs"`
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

// Fetch streams Maersk's NDJSON schedule response for the given family
// member (scac) and yields unified Schedules as each line arrives.
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
		params.Set("originPort", req.Origin)
		params.Set("destinationPort", req.Destination)
		params.Set("startDate", from.Format("2006-01-02"))
		params.Set("endDate", to.Format("2006-01-02"))

		headers := map[string]string{"Authorization": "Bearer " + ep.Token.Reveal()}

		for res, err := range deps.HTTP.Parse(ctx, httpclient.Request{
			URL: ep.URL, Params: params, Headers: headers, Stream: true,
		}, nil) {
			if err != nil {
				deps.Log.Warn("maersk: stream failed", "scac", scac, "error", err)
				yield(domain.Schedule{}, fmt.Errorf("maersk(%s): stream: %w", scac, err))
				return
			}
			if res.Doc == nil {
				continue
			}

			var rec streamRecord
			if jerr := json.Unmarshal(res.Doc, &rec); jerr != nil {
				deps.Log.Warn("maersk: malformed stream record", "scac", scac, "error", jerr)
				continue
			}

			sched, ok := buildSchedule(rec, string(scac))
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

func buildSchedule(rec streamRecord, scac string) (domain.Schedule, bool) {
	if len(rec.Legs) == 0 {
		return domain.Schedule{}, false
	}

	legs := make([]domain.Leg, 0, len(rec.Legs))
	for _, l := range rec.Legs {
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
