package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/resilience"
)

func ptr(v float64) *float64 { return &v }

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		lat   *float64
		lon   *float64
		query string
		ok    bool
	}{
		{name: "city only", raw: " Austin ", query: "Austin", ok: true},
		{name: "us state", raw: "Austin, tx", query: "Austin,TX,US", ok: true},
		{name: "state and country", raw: "Toronto, on, ca", query: "Toronto,ON,CA", ok: true},
		{name: "country name", raw: "Paris, France", query: "Paris,FRANCE", ok: true},
		{name: "multi word city", raw: "St. Louis,  MO", query: "St. Louis,MO,US", ok: true},
		{name: "coordinate string", raw: "30.27,-97.74", ok: true},
		{name: "numeric coordinates win", raw: "garbage!!", lat: ptr(30.27), lon: ptr(-97.74), ok: true},
		{name: "empty", raw: "   ", ok: false},
		{name: "symbols", raw: "<script>", ok: false},
		{name: "too many parts", raw: "a, b, c, d", ok: false},
		{name: "out of range coordinates", raw: "120,10", ok: false},
		{name: "out of range numeric", lat: ptr(10), lon: ptr(200), ok: false},
		{name: "digits as city", raw: "12345", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, ok := ParseLocation(tt.raw, tt.lat, tt.lon)
			assert.Equal(t, tt.ok, ok)
			if tt.ok && tt.query != "" {
				assert.Equal(t, tt.query, loc.Query)
			}
			if tt.ok && tt.query == "" {
				assert.True(t, loc.HasCoordinates())
			}
		})
	}
}

func TestLocationKeyIsStable(t *testing.T) {
	a, _ := ParseLocation("Austin, TX", nil, nil)
	b, _ := ParseLocation("austin,tx", nil, nil)
	assert.Equal(t, a.Key(), b.Key())

	c, _ := ParseLocation("", ptr(30.2711), ptr(-97.7437))
	d, _ := ParseLocation("30.27,-97.74", nil, nil)
	assert.Equal(t, c.Key(), d.Key())
}

func TestNormalize(t *testing.T) {
	snap := Normalize(Observation{Category: "Drizzle", PrecipitationInches: 0.123, TempMinF: 50, TempMaxF: 70, CloudCover: 140})
	assert.Equal(t, models.ConditionRain, snap.Condition)
	assert.Equal(t, 0.12, snap.PrecipitationInches)
	assert.Equal(t, 100, snap.CloudCover)
	assert.False(t, snap.FreezeRisk)

	// 霜冻优先于降雨和高温
	snap = Normalize(Observation{Category: "Rain", PrecipitationInches: 1, TempMinF: 32, TempMaxF: 40})
	assert.Equal(t, models.ConditionFreeze, snap.Condition)
	assert.True(t, snap.FreezeRisk)

	snap = Normalize(Observation{Category: "Clear", TempMinF: 45, TempMaxF: 60, FreezeFlag: true})
	assert.Equal(t, models.ConditionFreeze, snap.Condition)

	snap = Normalize(Observation{Category: "Clear", TempMinF: 75, TempMaxF: 95})
	assert.Equal(t, models.ConditionExtremeHeat, snap.Condition)

	snap = Normalize(Observation{Category: "Clear", TempMinF: 75, TempMaxF: 94.9})
	assert.Equal(t, models.ConditionClear, snap.Condition)

	snap = Normalize(Observation{Category: "Tornado", TempMinF: 60, TempMaxF: 70, PrecipitationInches: -1})
	assert.Equal(t, models.ConditionUnknown, snap.Condition)
	assert.Equal(t, 0.0, snap.PrecipitationInches)
}

func TestFactorsBoundaries(t *testing.T) {
	th := DefaultThresholds()

	f := FactorsOf(models.WeatherSnapshot{PrecipitationInches: 0.5}, th)
	assert.True(t, f.HeavyRain)
	assert.False(t, f.LightRain)

	f = FactorsOf(models.WeatherSnapshot{PrecipitationInches: 0.49}, th)
	assert.False(t, f.HeavyRain)
	assert.True(t, f.LightRain)

	f = FactorsOf(models.WeatherSnapshot{PrecipitationInches: 0.24}, th)
	assert.False(t, f.LightRain)
	assert.False(t, f.NearZeroPrecip)

	f = FactorsOf(models.WeatherSnapshot{PrecipitationInches: 0.05, TempMaxF: 90}, th)
	assert.True(t, f.NearZeroPrecip)
	assert.True(t, f.HotAndDry)

	f = FactorsOf(models.WeatherSnapshot{PrecipitationInches: 0.05, TempMaxF: 89.9}, th)
	assert.False(t, f.HotAndDry)

	f = FactorsOf(models.WeatherSnapshot{PrecipitationInches: 0.06, TempMaxF: 99}, th)
	assert.False(t, f.HotAndDry)
}

func TestCaveats(t *testing.T) {
	th := DefaultThresholds()

	mild := models.WeatherSnapshot{Location: "Austin,TX,US", Condition: models.ConditionClouds, PrecipitationInches: 0.1, TempMinF: 60, TempMaxF: 75}
	assert.Empty(t, Caveats(mild, th, false))

	rainy := mild
	rainy.PrecipitationInches = 1.2
	rainy.Condition = models.ConditionRain
	caveats := Caveats(rainy, th, false)
	require.Len(t, caveats, 1)
	assert.Contains(t, caveats[0], "skip watering")
	assert.Empty(t, Caveats(rainy, th, true), "rain does not matter indoors")

	frozen := models.WeatherSnapshot{Location: "Denver", Condition: models.ConditionFreeze, TempMinF: 20, FreezeRisk: true}
	assert.Contains(t, Caveats(frozen, th, true)[0], "drafts")
	assert.Contains(t, Caveats(frozen, th, false)[0], "hold off watering")
}

type fakeProvider struct {
	calls int
	errs  []error
	obs   Observation
	delay time.Duration
}

func (f *fakeProvider) Forecast(ctx context.Context, loc Location) (Observation, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return Observation{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return Observation{}, err
		}
	}
	return f.obs, nil
}

func fastContext(p Provider) *Context {
	return NewContext(p, 20*time.Millisecond).WithPolicy(resilience.Policy{Timeout: 20 * time.Millisecond, Attempts: 2, Backoff: time.Millisecond})
}

func TestFetchRetriesTransientOnce(t *testing.T) {
	p := &fakeProvider{
		errs: []error{apperror.Transient(errors.New("503"))},
		obs:  Observation{Category: "Clear", TempMinF: 60, TempMaxF: 80},
	}
	loc, _ := ParseLocation("Austin, TX", nil, nil)

	res := fastContext(p).Fetch(context.Background(), loc)
	require.True(t, res.Available())
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, "Austin,TX,US", res.Snapshot.Location)
	assert.Equal(t, models.ConditionClear, res.Snapshot.Condition)
}

func TestFetchDegradesWithoutError(t *testing.T) {
	loc, _ := ParseLocation("Austin", nil, nil)

	p := &fakeProvider{errs: []error{errors.New("401 invalid key")}}
	res := fastContext(p).Fetch(context.Background(), loc)
	assert.False(t, res.Available())
	assert.Equal(t, StatusUnavailable, res.Status)
	assert.Equal(t, 1, p.calls, "semantic failures are not retried")

	slow := &fakeProvider{delay: time.Second}
	res = fastContext(slow).Fetch(context.Background(), loc)
	assert.False(t, res.Available())
	assert.Equal(t, "weather lookup timed out", res.Reason)
	assert.Equal(t, 2, slow.calls)

	assert.ErrorIs(t, res.Err(), apperror.ErrUnavailable)
	assert.Contains(t, res.Err().Error(), "timed out")

	ok := fastContext(&fakeProvider{obs: Observation{Category: "Clear", TempMinF: 60, TempMaxF: 80}}).Fetch(context.Background(), loc)
	assert.NoError(t, ok.Err())

	var nilCtx *Context
	assert.False(t, nilCtx.Fetch(context.Background(), loc).Available())
	assert.False(t, NewContext(nil, time.Second).Fetch(context.Background(), loc).Available())
}

func TestFetchRawRejectsMalformedLocation(t *testing.T) {
	p := &fakeProvider{}
	res := fastContext(p).FetchRaw(context.Background(), "%%%", nil, nil)
	assert.False(t, res.Available())
	assert.Equal(t, 0, p.calls)
}
