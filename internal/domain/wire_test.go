package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStreamMessageEnvelope(t *testing.T) {
	raw := `{"type":"price_update","data":{"price":351234.56,"timestamp":"2025-01-15T12:00:00Z","change_24h_percent":1.5},"timestamp":"2025-01-15T12:00:00Z"}`

	var msg StreamMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if msg.Type != MsgPriceUpdate {
		t.Fatalf("type: %q", msg.Type)
	}

	var pu PriceUpdate
	if err := json.Unmarshal(msg.Data, &pu); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if pu.Change24hPercent == nil || *pu.Change24hPercent != 1.5 {
		t.Fatalf("change_24h_percent: %v", pu.Change24hPercent)
	}

	obs, err := pu.Observation()
	if err != nil {
		t.Fatalf("observation: %v", err)
	}
	if obs.Price.StringFixed(2) != "351234.56" {
		t.Fatalf("price: %s", obs.Price)
	}
}

func TestPriceUpdateAbsentChangeStaysNil(t *testing.T) {
	var pu PriceUpdate
	if err := json.Unmarshal([]byte(`{"price":100,"timestamp":"2025-01-15T12:00:00Z"}`), &pu); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if pu.Change24hPercent != nil {
		t.Fatalf("absent field must stay nil, got %v", *pu.Change24hPercent)
	}
}

func TestPriceUpdateRejectsMalformed(t *testing.T) {
	cases := []PriceUpdate{
		{Price: 0, Timestamp: "2025-01-15T12:00:00Z"},
		{Price: -10, Timestamp: "2025-01-15T12:00:00Z"},
		{Price: 100, Timestamp: "not a time"},
		{Price: 100, Timestamp: ""},
	}
	for i, pu := range cases {
		if _, err := pu.Observation(); err == nil {
			t.Fatalf("case %d should be rejected: %+v", i, pu)
		}
	}
}

func TestParseWireTimeLayouts(t *testing.T) {
	cases := []string{
		"2025-01-15T12:00:00.123456789Z",
		"2025-01-15T12:00:00Z",
		"2025-01-15 12:00:00",
	}
	for _, s := range cases {
		ts, err := ParseWireTime(s)
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if ts.Hour() != 12 {
			t.Fatalf("parse %q: got %s", s, ts)
		}
	}
}

func TestParseTimeRange(t *testing.T) {
	for _, h := range []int{6, 24, 72} {
		if _, err := ParseTimeRange(h); err != nil {
			t.Fatalf("range %dh should be valid: %v", h, err)
		}
	}
	for _, h := range []int{0, -6, 12, 48, 100} {
		if _, err := ParseTimeRange(h); err == nil {
			t.Fatalf("range %dh should be rejected", h)
		}
	}
}

func TestTimeRangeBucketInterval(t *testing.T) {
	cases := []struct {
		r    TimeRange
		want time.Duration
	}{
		{Range6H, time.Hour},
		{Range24H, 4 * time.Hour},
		{Range72H, 12 * time.Hour},
	}
	for _, c := range cases {
		if got := c.r.BucketInterval(); got != c.want {
			t.Fatalf("%s interval: got %s want %s", c.r, got, c.want)
		}
	}
	if Range24H.MultiDay() {
		t.Fatal("24h is a single-day range")
	}
	if !Range72H.MultiDay() {
		t.Fatal("72h spans multiple days")
	}
}

func TestRenderSeriesClone(t *testing.T) {
	s := RenderSeries{
		Timestamps: []time.Time{time.Now()},
		Points:     []decimal.Decimal{decimal.NewFromInt(100)},
		Labels:     []string{"12:00"},
	}
	c := s.Clone()
	c.Labels[0] = "changed"
	if s.Labels[0] != "12:00" {
		t.Fatal("clone must not share backing arrays")
	}
}
