package maersk

import (
	"context"
	"fmt"
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
	rec := streamRecord{Legs: []legDoc{
		{PointFromCode: "CNSHA", PointToCode: "USLAX", ETD: "2026-08-01T10:00:00", ETA: "2026-08-10T10:00:00", TransportType: "Vessel", VesselIMO: "1234567"},
	}}

	s, ok := buildSchedule(rec, "MAEU")
	if !ok {
		t.Fatal("expected buildSchedule to succeed")
	}
	if s.SCAC != "MAEU" {
		t.Errorf("SCAC = %q, want MAEU", s.SCAC)
	}
	if v := s.Validate(); v.HasWarnings() {
		t.Errorf("unexpected warnings: %v", v.WarningMessages())
	}
}

func TestFetch_StreamsMultipleFamilyMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		for i := 0; i < 3; i++ {
			fmt.Fprintf(w, `{"legs":[{"pointFromCode":"CNSHA","pointToCode":"USLAX","etd":"2026-08-01T10:00:00","eta":"2026-08-10T10:00:00","transportType":"Vessel","vesselImo":"%d"}]}`+"\n", 1000000+i)
		}
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

	t.Setenv("MAEU_URL", srv.URL)
	t.Setenv("MAEU_TOKEN", "tok")
	reg := settings.MustLoad([]domain.CarrierCode{domain.CarrierMAEU})

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
	for _, err := range Fetch(context.Background(), deps, req, domain.CarrierMAEU) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 streamed schedules, got %d", count)
	}
}
