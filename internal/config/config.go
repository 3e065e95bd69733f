package config

import (
	"errors"
	"regexp"
	"strings"

	"github.com/enerflux/der1547eval/pkg/p1547"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel     zapcore.Level
	Eut          EutConfig          `mapstructure:"eut"`
	Evaluation   EvaluationConfig   `mapstructure:"evaluation"`
	RideThrough  RideThroughConfig  `mapstructure:"ride_through"`
	DaqModbusTcp ModbusTCPConfig    `mapstructure:"daq_modbus_tcp"`
	SimModbusTcp ModbusTCPConfig    `mapstructure:"sim_modbus_tcp"`
	MQTT         MQTTConfig         `mapstructure:"mqtt"`

	Port    uint `mapstructure:"port"`
	HttpLog bool `mapstructure:"http_log"`
}

// EutConfig carries the equipment nameplate ratings.
type EutConfig struct {
	VNom        float64 `mapstructure:"v_nom"`
	SRated      float64 `mapstructure:"s_rated"`
	VLow        float64 `mapstructure:"v_low"`
	VHigh       float64 `mapstructure:"v_high"`
	FNom        float64 `mapstructure:"f_nom"`
	FMin        float64 `mapstructure:"f_min"`
	FMax        float64 `mapstructure:"f_max"`
	PRated      float64 `mapstructure:"p_rated"`
	PRatedPrime float64 `mapstructure:"p_rated_prime"`
	PMin        float64 `mapstructure:"p_min"`
	VarRated    float64 `mapstructure:"var_rated"`
	Phases      uint    `mapstructure:"phases"`
	Absorb      bool    `mapstructure:"absorb"`
	StartupTime float64 `mapstructure:"startup_time"`
}

// ToP1547 maps the raw config values onto the engine's EUT parameters.
func (c EutConfig) ToP1547() p1547.EutConfig {
	return p1547.EutConfig{
		VNom:        c.VNom,
		SRated:      c.SRated,
		VLow:        c.VLow,
		VHigh:       c.VHigh,
		FNom:        c.FNom,
		FMin:        c.FMin,
		FMax:        c.FMax,
		PRated:      c.PRated,
		PRatedPrime: c.PRatedPrime,
		PMin:        c.PMin,
		VarRated:    c.VarRated,
		Phases:      p1547.Phases(c.Phases),
		Absorb:      c.Absorb,
		StartupTime: c.StartupTime,
	}
}

type EvaluationConfig struct {
	Function     string  `mapstructure:"function"`
	CurveIndex   int     `mapstructure:"curve_index"`
	PowerLevel   float64 `mapstructure:"power_level"`
	ResponseTime float64 `mapstructure:"response_time"`
	Periods      int     `mapstructure:"periods"`
	// StepTimeoutSeconds bounds how long one step may run before the
	// run is aborted.
	StepTimeoutSeconds uint32 `mapstructure:"step_timeout_seconds"`
}

// RideThroughConfig selects and shapes the disturbance profile when the
// configured procedure is one of the ride-through tests.
type RideThroughConfig struct {
	Category    int     `mapstructure:"category"`
	HighSide    bool    `mapstructure:"high_side"`
	Consecutive bool    `mapstructure:"consecutive"`
	RandomRange bool    `mapstructure:"random_range"`
	TestNumber  int     `mapstructure:"test_number"`
	HoldPeriod  float64 `mapstructure:"hold_period"`
	Frequency   float64 `mapstructure:"frequency"`
	// Imbalance applies a Table 24 phase assignment before the profile
	// runs; empty skips it.
	Imbalance string `mapstructure:"imbalance"`
}

type ModbusTCPConfig struct {
	Host          string `mapstructure:"host"`
	Port          uint   `mapstructure:"port"`
	UnitId        uint   `mapstructure:"unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type MQTTConfig struct {
	Enable    bool   `mapstructure:"enable"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	BaseTopic string `mapstructure:"base_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// RideThroughKind identifies the configured ride-through procedure.
type RideThroughKind string

const (
	VoltageRideThrough     RideThroughKind = "VRT"
	FrequencyRideThrough   RideThroughKind = "FRT"
	PhaseChangeRideThrough RideThroughKind = "PCRT"
)

// ParseRideThrough reports whether the configured procedure name selects a
// ride-through test instead of a grid-support function.
func ParseRideThrough(name string) (RideThroughKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "VRT", "VOLTAGE RIDE-THROUGH":
		return VoltageRideThrough, true
	case "FRT", "FREQUENCY RIDE-THROUGH":
		return FrequencyRideThrough, true
	case "PCRT", "PHASE-CHANGE RIDE-THROUGH":
		return PhaseChangeRideThrough, true
	default:
		return "", false
	}
}

// ParseFunction resolves the configured grid-support function name.
func ParseFunction(name string) (p1547.Function, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "VV", "VOLT-VAR":
		return p1547.VV, nil
	case "VW", "VOLT-WATT":
		return p1547.VW, nil
	case "WV", "WATT-VAR":
		return p1547.WV, nil
	case "CPF", "CONSTANT POWER FACTOR":
		return p1547.CPF, nil
	case "CRP", "CONSTANT REACTIVE POWER":
		return p1547.CRP, nil
	case "FW", "FREQ-WATT":
		return p1547.FW, nil
	case "LAP", "LIMIT ACTIVE POWER":
		return p1547.LAP, nil
	case "PRI", "PRIORITIZATION":
		return p1547.PRI, nil
	default:
		return "", errors.New("unknown grid-support function: " + name)
	}
}
