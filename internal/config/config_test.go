package config

import (
	"testing"

	"github.com/enerflux/der1547eval/pkg/p1547"

	"github.com/stretchr/testify/assert"
)

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("DER1547")
	assert.NoError(err)
	assert.Equal("der1547", topic)

	_, err = CheckMQTTTopic("bad/topic")
	assert.Error(err)
	_, err = CheckMQTTTopic("")
	assert.Error(err)
}

func TestParseFunction(t *testing.T) {

	assert := assert.New(t)

	fn, err := ParseFunction("vv")
	assert.NoError(err)
	assert.Equal(p1547.VV, fn)

	fn, err = ParseFunction("Constant Reactive Power")
	assert.NoError(err)
	assert.Equal(p1547.CRP, fn)

	fn, err = ParseFunction(" fw ")
	assert.NoError(err)
	assert.Equal(p1547.FW, fn)

	_, err = ParseFunction("nope")
	assert.Error(err)
}

func TestParseRideThrough(t *testing.T) {

	assert := assert.New(t)

	kind, ok := ParseRideThrough("vrt")
	assert.True(ok)
	assert.Equal(VoltageRideThrough, kind)

	kind, ok = ParseRideThrough("Phase-Change Ride-Through")
	assert.True(ok)
	assert.Equal(PhaseChangeRideThrough, kind)

	_, ok = ParseRideThrough("VV")
	assert.False(ok)
}

func TestEutConfigToP1547(t *testing.T) {

	assert := assert.New(t)

	cfg := EutConfig{
		VNom: 120, SRated: 10000, VLow: 105.6, VHigh: 132,
		FNom: 60, FMin: 56, FMax: 64,
		PRated: 10000, PMin: 200, VarRated: 4400,
		Phases: 3, StartupTime: 5,
	}
	eut, err := p1547.NewEutParameters(cfg.ToP1547())
	assert.NoError(err)
	assert.Equal(120.0, eut.VNom)
	assert.Equal(p1547.ThreePhase, eut.Phases)
	assert.Equal(5.0, eut.StartupTime)
}
