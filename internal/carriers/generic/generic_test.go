package generic

import (
	"context"
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

func TestBuildSchedule(t *testing.T) {
	r := routeDoc{Legs: []legDoc{
		{PointFromCode: "CNSHA", PointToCode: "USLAX", ETD: "2026-08-01T10:00:00", ETA: "2026-08-10T10:00:00", TransportType: "Vessel", VesselIMO: "1234567"},
	}}
	s, ok := buildSchedule(r, "MSCU")
	if !ok {
		t.Fatal("expected buildSchedule to succeed")
	}
	if v := s.Validate(); v.HasWarnings() {
		t.Errorf("unexpected warnings: %v", v.WarningMessages())
	}
}

func TestFetch_TokenAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"routingDetails":[{"legs":[{"pointFromCode":"CNSHA","pointToCode":"USLAX","etd":"2026-08-01T10:00:00","eta":"2026-08-10T10:00:00","transportType":"Vessel","vesselImo":"1234567"}]}]}`))
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

	t.Setenv("MSCU_URL", srv.URL)
	t.Setenv("MSCU_TOKEN", "tok")
	reg := settings.MustLoad([]domain.CarrierCode{domain.CarrierMSCU})

	deps := carriers.Deps{
		HTTP: httpc, BG: bg, Settings: reg,
		Log: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}

	req := domain.SearchRequest{
		Origin: "CNSHA", Destination: "USLAX",
		StartDateType: domain.StartDateDeparture,
		DepartureDate: time.Now(),
		SearchRange:   domain.SearchRange7d,
	}

	var count int
	for _, err := range Fetch(context.Background(), deps, req, domain.CarrierMSCU) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 schedule, got %d", count)
	}
}
