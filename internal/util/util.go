package util

import (
	"github.com/enerflux/der1547eval/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Eut: config.EutConfig{
			VNom:        120,
			SRated:      10000,
			VLow:        105.6,
			VHigh:       132,
			FNom:        60,
			FMin:        56,
			FMax:        64,
			PRated:      10000,
			PMin:        200,
			VarRated:    4400,
			Phases:      3,
			StartupTime: 5,
		},
		Evaluation: config.EvaluationConfig{
			Function:   "VV",
			CurveIndex: 1,
			PowerLevel: 1.0,
			Periods:    2,
		},
		DaqModbusTcp: config.ModbusTCPConfig{
			Host:          "-.-.-.-",
			Port:          502,
			UnitId:        1,
			TimeoutMillis: 1000,
		},
		SimModbusTcp: config.ModbusTCPConfig{
			Host:          "-.-.-.-",
			Port:          502,
			UnitId:        2,
			TimeoutMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "der1547",
		},
		Port: 8080,
	}
}
