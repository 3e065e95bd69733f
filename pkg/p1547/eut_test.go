package p1547

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testEutConfig() EutConfig {
	return EutConfig{
		VNom:        120.0,
		SRated:      10000.0,
		VLow:        0.88 * 120.0,
		VHigh:       1.10 * 120.0,
		FNom:        60.0,
		FMin:        56.0,
		FMax:        64.0,
		PRated:      10000.0,
		PMin:        200.0,
		VarRated:    4400.0,
		Phases:      ThreePhase,
		StartupTime: 0,
	}
}

func TestNewEutParametersDerivesMRA(t *testing.T) {

	assert := assert.New(t)

	eut, err := NewEutParameters(testEutConfig())
	assert.NoError(err)

	assert.InDelta(1.2, eut.MRA.Voltage, 1e-9, "1% of v_nom")
	assert.InDelta(500.0, eut.MRA.ActivePower, 1e-9, "5% of s_rated")
	assert.InDelta(500.0, eut.MRA.ReactivePower, 1e-9, "5% of s_rated")
	assert.Equal(0.01, eut.MRA.Frequency)
	assert.Equal(0.01, eut.MRA.Time)
	assert.InDelta(2.4, eut.MRA.VoltageTransient, 1e-9)
	assert.Equal(0.1, eut.MRA.FrequencyTransient)
	assert.InDelta(2.0/60.0, eut.MRA.TimeTransient, 1e-12)
}

func TestNewEutParametersDefaultsAbsorptionRating(t *testing.T) {

	assert := assert.New(t)

	eut, err := NewEutParameters(testEutConfig())
	assert.NoError(err)
	assert.Equal(-10000.0, eut.PRatedPrime)
}

func TestNewEutParametersRejectsBadRatings(t *testing.T) {

	assert := assert.New(t)

	cfg := testEutConfig()
	cfg.VNom = 0
	_, err := NewEutParameters(cfg)
	assert.ErrorIs(err, ErrConfiguration)

	cfg = testEutConfig()
	cfg.VLow, cfg.VHigh = cfg.VHigh, cfg.VLow
	_, err = NewEutParameters(cfg)
	assert.ErrorIs(err, ErrConfiguration)

	cfg = testEutConfig()
	cfg.Phases = Phases(7)
	_, err = NewEutParameters(cfg)
	assert.ErrorIs(err, ErrConfiguration)
}

func TestMRAOf(t *testing.T) {

	assert := assert.New(t)

	eut, err := NewEutParameters(testEutConfig())
	assert.NoError(err)

	assert.Equal(eut.MRA.Voltage, eut.MRA.Of(Voltage))
	assert.Equal(eut.MRA.ActivePower, eut.MRA.Of(ActivePower))
	assert.Equal(eut.MRA.Time, eut.MRA.Of(Duration))
	assert.Equal(0.0, eut.MRA.Of(Quantity("X")))
}

func TestValidateVersion(t *testing.T) {

	assert := assert.New(t)

	assert.NoError(ValidateVersion(Version))
	assert.ErrorIs(ValidateVersion("0.0.1"), ErrConfiguration)
}
