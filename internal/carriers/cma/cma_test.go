package cma

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"schedulep2p/internal/bgtask"
	"schedulep2p/internal/carriers"
	"schedulep2p/internal/domain"
	"schedulep2p/internal/settings"
	"schedulep2p/pkg/config"
	"schedulep2p/pkg/httpclient"
)

func TestContentRange(t *testing.T) {
	n, m, total, ok := contentRange("items 0-49/120")
	if !ok || n != 0 || m != 49 || total != 120 {
		t.Fatalf("contentRange = (%d,%d,%d,%v), want (0,49,120,true)", n, m, total, ok)
	}

	if _, _, _, ok := contentRange("garbage"); ok {
		t.Fatal("expected contentRange to reject a malformed header")
	}
}

func TestBuildSchedule_FallbackTimestamp(t *testing.T) {
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	d := routeDoc{Legs: []struct {
		PointFromCode  string `json:"pointFromCode"`
		PointFromName  string `json:"pointFromName"`
		PointToCode    string `json:"pointToCode"`
		PointToName    string `json:"pointToName"`
		ETD            string `json:"etd"`
		ETA            string `json:"eta"`
		VesselName     string `json:"vesselName"`
		TransportType  string `json:"transportType"`
		IMO            string `json:"imo"`
		ServiceCode    string `json:"serviceCode"`
		InternalVoyage string `json:"internalVoyageNumber"`
		ExternalVoyage string `json:"externalVoyageNumber"`
	}{
		{PointFromCode: "CNSHA", PointToCode: "USLAX", ETD: "", ETA: ""},
	}}

	s, ok := buildSchedule(d, "CMDU", func() time.Time { return fixed })
	if !ok {
		t.Fatal("expected buildSchedule to succeed using the fallback timestamp")
	}
	if !s.ETD.Equal(fixed) || !s.ETA.Equal(fixed) {
		t.Errorf("expected fallback timestamp %v, got etd=%v eta=%v", fixed, s.ETD, s.ETA)
	}
}

func TestMapTransportType(t *testing.T) {
	if mapTransportType("Truck") != domain.TransportTruck {
		t.Error("expected Truck")
	}
	if mapTransportType("unknown") != domain.TransportVessel {
		t.Error("expected default Vessel")
	}
}

func TestSpecificRoutings(t *testing.T) {
	if got := specificRoutings("0015", "USLAX", "USNYC"); got != "USGovernment" {
		t.Errorf("specificRoutings(0015, US, US) = %q, want USGovernment", got)
	}
	if got := specificRoutings("0015", "CNSHA", "USLAX"); got != "Commercial" {
		t.Errorf("specificRoutings(0015, non-US origin) = %q, want Commercial", got)
	}
	if got := specificRoutings("0001", "USLAX", "USNYC"); got != "Commercial" {
		t.Errorf("specificRoutings(non-APLU, US, US) = %q, want Commercial", got)
	}
}

func TestMaxTs(t *testing.T) {
	if got := maxTs(domain.DirectOnlyTrue); got != "0" {
		t.Errorf("maxTs(DirectOnlyTrue) = %q, want 0", got)
	}
	if got := maxTs(domain.DirectOnlyFalse); got != "3" {
		t.Errorf("maxTs(DirectOnlyFalse) = %q, want 3", got)
	}
	if got := maxTs(domain.DirectOnlyUnset); got != "3" {
		t.Errorf("maxTs(DirectOnlyUnset) = %q, want 3", got)
	}
}

func TestFetch_PagingConcatenatesAllPages(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Header().Set("Content-Range", "items 0-49/120")
			w.Header().Set("X-Shipping-Company-Routings", "0001")
			w.WriteHeader(http.StatusPartialContent)
			json.NewEncoder(w).Encode(makeRoutes(50))
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(makeRoutes(50))
	}))
	defer srv.Close()

	bg := bgtask.New()
	httpc, err := httpclient.New(config.HTTPClientConfig{
		MaxClientConnection: 10, MaxKeepAliveConnection: 5,
		KeepAliveExpiry: 30 * time.Second, ConnectTimeout: 2 * time.Second,
	}, bg)
	if err != nil {
		t.Fatalf("httpclient.New() error = %v", err)
	}

	t.Setenv("CMDU_URL", srv.URL)
	t.Setenv("CMDU_TOKEN", "tok")
	reg := settings.MustLoad([]domain.CarrierCode{domain.CarrierCMDU})

	deps := carriers.Deps{
		HTTP:     httpc,
		BG:       bg,
		Settings: reg,
		Log:      slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}

	req := domain.SearchRequest{
		Origin: "CNSHA", Destination: "SGSIN",
		StartDateType: domain.StartDateDeparture,
		DepartureDate: time.Now(),
		SearchRange:   domain.SearchRange14d,
	}

	var count int
	for _, err := range Fetch(context.Background(), deps, req, domain.CarrierCMDU) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		count++
	}
	if count < 50 {
		t.Fatalf("expected at least 50 concatenated schedules, got %d", count)
	}
}

func makeRoutes(n int) []map[string]any {
	routes := make([]map[string]any, n)
	for i := range routes {
		routes[i] = map[string]any{
			"legs": []map[string]any{
				{
					"pointFromCode": "CNSHA", "pointToCode": "SGSIN",
					"etd": "2026-08-01T10:00:00", "eta": "2026-08-05T10:00:00",
					"transportType": "Vessel",
				},
			},
		}
	}
	return routes
}

