// Package zim adapts ZIM's vessel-schedule API into the unified schema.
// Auth is OAuth2 client-credentials (scope "Vessel Schedule"); the token
// is cached under a token-specific fingerprint, with a TTL read from the
// token's own exp claim when it is a JWT, falling back to a fixed
// 55-minute TTL otherwise — in both cases strictly less than the
// issuer's validity (spec.md §3).
package zim

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"schedulep2p/internal/carriers"
	"schedulep2p/internal/domain"
	"schedulep2p/pkg/httpclient"
)

const (
	scac          = domain.CarrierZIMU
	tokenTTL      = 55 * time.Minute
	scheduleScope = "Vessel Schedule"
)

// route is the shape of one entry in ZIM's routingDetails array.
// DeparturePort is the route's own point-of-loading code, used to locate
// the nearest-POL leg the same way the upstream response itself frames it
// rather than by assuming legOrder 0 is always the POL.
type route struct {
	DeparturePort string   `json:"departurePort"`
	Legs          []legDoc `json:"legs"`
}

type legDoc struct {
	LegOrder        int    `json:"legOrder"`
	PointFrom       string `json:"pointFromCode"`
	PointFromName   string `json:"pointFromName"`
	PointTo         string `json:"pointToCode"`
	PointToName     string `json:"pointToName"`
	ETD             string `json:"etd"`
	ETA             string `json:"eta"`
	VesselName      string `json:"vesselName"`
	Line            string `json:"line"`
	LegIMO          string `json:"legIMO"`
	TransportType   string `json:"transportType"`
	ServiceCode     string `json:"serviceCode"`
	InternalVoyage  string `json:"internalVoyageNumber"`
	ExternalVoyage  string `json:"externalVoyageNumber"`
	CyCutoffDate    string `json:"cyCutoffDate"`
	DocCutoffDate   string `json:"docCutoffDate"`
	VgmCutoffDate   string `json:"vgmCutoffDate"`
}

type responseDoc struct {
	RoutingDetails []route `json:"routingDetails"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// mapTransportType applies spec.md §4.E's closed ZIM mapping.
func mapTransportType(raw string) domain.TransportType {
	switch raw {
	case "Land Trans":
		return domain.TransportTruck
	case "Feeder":
		return domain.TransportFeeder
	case "BAR":
		return domain.TransportBarge
	case "TO BE NAMED":
		return domain.TransportVessel
	default:
		return domain.TransportVessel
	}
}

// mapIMOReference implements spec.md §4.E's IMO reference mapping rule.
func mapIMOReference(legIMO, vesselName, line string, transport domain.TransportType) string {
	if legIMO != "" && vesselName != "TO BE NAMED" && transport != domain.TransportTruck {
		return legIMO
	}
	if (line == "UNK" && legIMO == "" && transport != domain.TransportTruck) || transport == domain.TransportFeeder {
		return "9"
	}
	if transport == domain.TransportTruck {
		return "3"
	}
	return "1"
}

func sortParam(t domain.StartDateType) string {
	if t == domain.StartDateArrival {
		return "Arrival"
	}
	return "Departure"
}

func tokenCacheKey() string {
	return fmt.Sprintf("zim-oauth-token-%s", scheduleScope)
}

func fetchToken(ctx context.Context, deps carriers.Deps, ep endpoint) (string, error) {
	if raw, err := deps.Cache.Get(ctx, tokenCacheKey()); err == nil {
		var cached tokenResponse
		if json.Unmarshal(raw, &cached) == nil && cached.AccessToken != "" {
			return cached.AccessToken, nil
		}
	}

	var token string
	for res, err := range deps.HTTP.Parse(ctx, httpclient.Request{
		Method: "POST",
		URL:    ep.TokenURL,
		JSON: map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     ep.ClientID,
			"client_secret": ep.ClientSecret,
			"scope":         scheduleScope,
		},
	}, nil) {
		if err != nil {
			return "", err
		}
		var tr tokenResponse
		if jerr := json.Unmarshal(res.Doc, &tr); jerr != nil {
			return "", jerr
		}
		token = tr.AccessToken
	}
	if token == "" {
		return "", fmt.Errorf("zim: token endpoint returned no access_token")
	}

	if payload, merr := json.Marshal(tokenResponse{AccessToken: token}); merr == nil {
		deps.Cache.Set(ctx, tokenCacheKey(), payload, ttlFor(token))
	}
	return token, nil
}

// ttlFor reads the access token's exp claim, if it is a JWT, and caches it
// for the time remaining until expiry minus a safety margin; falls back to
// the fixed tokenTTL when the token isn't a JWT or carries no exp claim.
func ttlFor(token string) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return tokenTTL
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return tokenTTL
	}
	remaining := time.Until(exp.Time) - 5*time.Minute
	if remaining <= 0 {
		return tokenTTL
	}
	if remaining > tokenTTL {
		return tokenTTL
	}
	return remaining
}

type endpoint struct {
	URL          string
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// Fetch queries ZIM's schedule API and yields unified Schedules, per the
// shared adapter pattern of spec.md §4.E.
func Fetch(ctx context.Context, deps carriers.Deps, req domain.SearchRequest) iter.Seq2[domain.Schedule, error] {
	return func(yield func(domain.Schedule, error) bool) {
		ep, ok := deps.Settings.Endpoint(scac)
		if !ok {
			return
		}
		zep := endpoint{URL: ep.URL, ClientID: ep.ClientID.Reveal(), ClientSecret: ep.ClientSecret.Reveal(), TokenURL: ep.TokenURL}

		token, err := fetchToken(ctx, deps, zep)
		if err != nil {
			deps.Log.Warn("zim: token acquisition failed", "error", err)
			yield(domain.Schedule{}, fmt.Errorf("zim: token acquisition: %w", err))
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
		params.Set("sortByDepartureOrArrival", sortParam(req.StartDateType))

		for res, err := range deps.HTTP.Parse(ctx, httpclient.Request{
			URL:    zep.URL,
			Params: params,
			Headers: map[string]string{
				"Authorization": "Bearer " + token,
			},
			CacheKey:    "", // individual carrier documents are not cached, only the assembled envelope
			CacheExpire: 0,
		}, noopCache{}) {
			if err != nil {
				deps.Log.Warn("zim: request failed", "error", err)
				yield(domain.Schedule{}, fmt.Errorf("zim: request: %w", err))
				return
			}
			if res.Doc == nil {
				continue
			}

			var doc responseDoc
			if jerr := json.Unmarshal(res.Doc, &doc); jerr != nil {
				deps.Log.Warn("zim: malformed response", "error", jerr)
				continue
			}

			for _, r := range doc.RoutingDetails {
				sched, ok := buildSchedule(r)
				if !ok {
					continue // fail closed per the open-question decision: drop the route
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

// noopCache satisfies httpclient.CacheWriter without actually caching —
// ZIM responses are not individually cached, only the aggregator's
// assembled envelope is (spec.md §4.B/§4.F).
type noopCache struct{}

func (noopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

// nearestPOLOrder locates the leg whose PointFrom matches the route's own
// departure port, scanning from the end so a port visited twice (e.g. a
// backhaul) resolves to its last occurrence — the leg nearest the POD,
// matching the upstream response's own routeLegs[::-1] resolution order.
func nearestPOLOrder(r route) (int, bool) {
	for i := len(r.Legs) - 1; i >= 0; i-- {
		if r.Legs[i].PointFrom == r.DeparturePort {
			return r.Legs[i].LegOrder, true
		}
	}
	return 0, false
}

// buildSchedule converts one ZIM route document into a unified Schedule.
// legOrder clipping: any leg whose legOrder precedes the nearest-POL leg's
// order is dropped; if no leg's PointFrom matches the route's own
// departure port at all, the route is rejected outright (open question,
// decided fail-closed — see the design notes).
func buildSchedule(r route) (domain.Schedule, bool) {
	if len(r.Legs) == 0 {
		return domain.Schedule{}, false
	}

	polOrder, ok := nearestPOLOrder(r)
	if !ok {
		return domain.Schedule{}, false
	}

	sorted := append([]legDoc(nil), r.Legs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LegOrder < sorted[j].LegOrder })

	var clipped []legDoc
	for _, l := range sorted {
		if l.LegOrder >= polOrder {
			clipped = append(clipped, l)
		}
	}
	if len(clipped) == 0 {
		return domain.Schedule{}, false
	}

	legs := make([]domain.Leg, 0, len(clipped))
	for _, l := range clipped {
		etd, err1 := time.Parse("2006-01-02T15:04:05", l.ETD)
		eta, err2 := time.Parse("2006-01-02T15:04:05", l.ETA)
		if err1 != nil || err2 != nil {
			return domain.Schedule{}, false
		}

		transport := mapTransportType(l.TransportType)
		ref := mapIMOReference(l.LegIMO, l.VesselName, l.Line, transport)

		leg := domain.Leg{
			PointFrom:   domain.PointBase{LocationCode: l.PointFrom, LocationName: l.PointFromName},
			PointTo:     domain.PointBase{LocationCode: l.PointTo, LocationName: l.PointToName},
			ETD:         etd,
			ETA:         eta,
			TransitTime: daysBetween(etd, eta),
			Transportations: domain.Transportation{
				TransportType: transport,
				TransportName: l.VesselName,
				ReferenceType: "IMO",
				Reference:     ref,
			},
			LegOrder: l.LegOrder,
		}
		if l.ServiceCode != "" {
			leg.Services = &domain.Service{ServiceCode: l.ServiceCode}
		}
		if l.InternalVoyage != "" || l.ExternalVoyage != "" {
			leg.Voyages = &domain.Voyage{InternalVoyage: l.InternalVoyage, ExternalVoyage: l.ExternalVoyage}
		}
		leg.Cutoffs = buildCutoffs(l)

		legs = append(legs, leg)
	}

	first, last := legs[0], legs[len(legs)-1]
	return domain.Schedule{
		SCAC:          string(scac),
		PointFrom:     first.PointFrom.LocationCode,
		PointTo:       last.PointTo.LocationCode,
		ETD:           first.ETD,
		ETA:           last.ETA,
		TransitTime:   daysBetween(first.ETD, last.ETA),
		Transshipment: len(legs) > 1,
		Legs:          legs,
	}, true
}

func buildCutoffs(l legDoc) *domain.Cutoff {
	c := &domain.Cutoff{}
	if t, err := time.Parse("2006-01-02T15:04:05", l.CyCutoffDate); err == nil {
		c.CyCutoffDate = &t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", l.DocCutoffDate); err == nil {
		c.DocCutoffDate = &t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", l.VgmCutoffDate); err == nil {
		c.VgmCutoffDate = &t
	}
	if !c.HasAnyField() {
		return nil
	}
	return c
}

func daysBetween(from, to time.Time) int {
	d := to.Truncate(24 * time.Hour).Sub(from.Truncate(24 * time.Hour))
	return int(d.Hours() / 24)
}
