package alert

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validBody() []byte {
	return []byte(`{"symbol":"BTCUSDT","timeframe":"4h","side":"long","entry":64000,"stop":62500,"targets":[66000,68000],"confidence":0.8,"rationale":"breakout retest"}`)
}

func TestParse_Valid(t *testing.T) {
	p, err := Parse(validBody())

	assert.NoError(t, err)
	assert.Equal(t, "BTCUSDT", p.Symbol)
	assert.Equal(t, "long", p.Side)
	assert.Equal(t, 64000.0, p.Entry)
	assert.Len(t, p.Targets, 2)
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"symbol": "BTCUSDT",`))
	assert.Error(t, err)
}

func TestParse_MissingFields(t *testing.T) {
	cases := map[string]string{
		"no symbol":    `{"timeframe":"4h","side":"long","entry":1,"stop":2}`,
		"no timeframe": `{"symbol":"BTCUSDT","side":"long","entry":1,"stop":2}`,
		"no entry":     `{"symbol":"BTCUSDT","timeframe":"4h","side":"long","stop":2}`,
		"no stop":      `{"symbol":"BTCUSDT","timeframe":"4h","side":"long","entry":1}`,
		"bad side":     `{"symbol":"BTCUSDT","timeframe":"4h","side":"hold","entry":1,"stop":2}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestValidate_NonFiniteNumbers(t *testing.T) {
	p := &Payload{Symbol: "BTCUSDT", Timeframe: "4h", Side: "long", Entry: math.Inf(1), Stop: 2}
	assert.ErrorIs(t, p.Validate(), ErrBadNumber)

	bad := math.NaN()
	p = &Payload{Symbol: "BTCUSDT", Timeframe: "4h", Side: "long", Entry: 1, Stop: 2, RiskPercentOverride: &bad}
	assert.ErrorIs(t, p.Validate(), ErrBadNumber)
}

func TestFingerprint_IgnoresAdvisoryFields(t *testing.T) {
	a := &Payload{Symbol: "BTCUSDT", Timeframe: "4h", Side: "long", Entry: 64000, Stop: 62500, Targets: []float64{66000}}
	b := &Payload{Symbol: "btcusdt", Timeframe: "4H", Side: "LONG", Entry: 64000, Stop: 62500, Targets: []float64{66000},
		Confidence: 0.9, Rationale: "redelivered with new wording"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_ChangesWithEconomicFields(t *testing.T) {
	base := &Payload{Symbol: "BTCUSDT", Timeframe: "4h", Side: "long", Entry: 64000, Stop: 62500}

	differentStop := *base
	differentStop.Stop = 62000
	assert.NotEqual(t, Fingerprint(base), Fingerprint(&differentStop))

	differentSide := *base
	differentSide.Side = "short"
	assert.NotEqual(t, Fingerprint(base), Fingerprint(&differentSide))

	override := 2.0
	withOverride := *base
	withOverride.RiskPercentOverride = &override
	assert.NotEqual(t, Fingerprint(base), Fingerprint(&withOverride))
}
