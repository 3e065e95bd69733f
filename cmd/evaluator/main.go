package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/enerflux/der1547eval/internal/adapter/daq"
	"github.com/enerflux/der1547eval/internal/adapter/mqttpub"
	"github.com/enerflux/der1547eval/internal/adapter/simulator"
	"github.com/enerflux/der1547eval/internal/config"
	"github.com/enerflux/der1547eval/internal/core/port"
	"github.com/enerflux/der1547eval/internal/core/service"
	"github.com/enerflux/der1547eval/internal/server"
	"github.com/enerflux/der1547eval/internal/util"
	"github.com/enerflux/der1547eval/pkg/p1547"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, cancelRun context.CancelFunc, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	cancelRun()

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	slog.SetDefault(util.NewSlogBridge(logger))

	eut, err := p1547.NewEutParameters(cfg.Eut.ToP1547())
	if err != nil {
		logger.Error("bad eut config", zap.Error(err))
		return
	}

	if kind, ok := config.ParseRideThrough(cfg.Evaluation.Function); ok {
		if err := runRideThrough(cfg, kind, eut, logger); err != nil {
			logger.Error("ride-through programming failed", zap.Error(err))
		}
		return
	}

	fn, err := config.ParseFunction(cfg.Evaluation.Function)
	if err != nil {
		logger.Error("bad evaluation config", zap.Error(err))
		return
	}
	curves, err := p1547.DefaultCurves(eut, p1547.CurveOptions{})
	if err != nil {
		logger.Error("characteristic derivation failed", zap.Error(err))
		return
	}

	provider, err := daqProvider(cfg, eut, logger)
	if err != nil {
		panic(err)
	}
	defer provider.Close()

	driver, err := simulatorDriver(cfg, logger)
	if err != nil {
		panic(err)
	}
	defer driver.Close()

	var sink port.ResultSink
	if cfg.MQTT.Enable {
		publisher := mqttpub.NewPublisher(cfg.MQTT, util.ComponentLogger("mqtt", logger))
		if err := publisher.Connect(); err != nil {
			panic(err)
		}
		defer publisher.Disconnect(time.Second)
		sink = publisher
	}

	runner := service.NewRunner(cfg.Evaluation, eut, curves, driver, provider, sink,
		util.ComponentLogger("runner", logger))

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go func() {
		run, err := runner.Run(runCtx, fn)
		if err != nil {
			logger.Error("evaluation run failed", zap.Error(err))
			return
		}
		logger.Info("evaluation run finished",
			zap.String("run", run.ID.String()),
			zap.String("function", string(run.Function)),
			zap.Bool("passed", run.Passed()))
	}()

	server := server.NewServer(*cfg, runner)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, cancelRun, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")
}

func initConfig() (*config.Config, error) {

	// alias PORT => DER1547_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("DER1547_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("der1547")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	if cfg.MQTT.Enable {
		baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = baseTopic
	}

	// check bounds
	if _, ok := config.ParseRideThrough(cfg.Evaluation.Function); !ok {
		if _, err := config.ParseFunction(cfg.Evaluation.Function); err != nil {
			return nil, err
		}
	}
	if cfg.Evaluation.CurveIndex < 1 || cfg.Evaluation.CurveIndex > 3 {
		return nil, errors.New("config param evaluation.curve_index should be 1, 2 or 3")
	}
	if cfg.Evaluation.PowerLevel <= 0 || cfg.Evaluation.PowerLevel > 1 {
		return nil, errors.New("config param evaluation.power_level should be in (0, 1]")
	}
	if cfg.Evaluation.Periods < 1 {
		return nil, errors.New("config param evaluation.periods should be >= 1")
	}
	if cfg.DaqModbusTcp.TimeoutMillis < 100 {
		return nil, errors.New("config param daq_modbus_tcp.timeout_millis should be >= 100")
	}
	if cfg.SimModbusTcp.TimeoutMillis < 100 {
		return nil, errors.New("config param sim_modbus_tcp.timeout_millis should be >= 100")
	}

	return &cfg, nil
}

// runRideThrough programs the configured disturbance profile into the
// simulator and exits; ride-through verdicts come from the EUT trip logs,
// not this tool's evaluator.
func runRideThrough(cfg *config.Config, kind config.RideThroughKind,
	eut *p1547.EutParameters, logger *zap.Logger) error {
	driver, err := simulatorDriver(cfg, logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	policy := p1547.Figure
	if cfg.RideThrough.RandomRange {
		policy = p1547.Random
	}
	gen := p1547.NewRideThrough(eut, policy)
	gen.Consecutive = cfg.RideThrough.Consecutive

	svc := service.NewRideThroughService(eut, gen, driver, util.ComponentLogger("ridethrough", logger))
	ctx := context.Background()

	if imb := cfg.RideThrough.Imbalance; imb != "" {
		if _, err := svc.ApplyImbalance(ctx, p1547.FixMode(imb), false); err != nil {
			return err
		}
	}

	var seq p1547.Sequence
	switch kind {
	case config.VoltageRideThrough:
		seq, err = svc.ProgramVRT(ctx, p1547.VRTMode{
			HighVoltage: cfg.RideThrough.HighSide,
			Category:    p1547.Category(cfg.RideThrough.Category),
		})
	case config.FrequencyRideThrough:
		seq, err = svc.ProgramFRT(ctx, p1547.FRTMode{HighFrequency: cfg.RideThrough.HighSide},
			cfg.RideThrough.HoldPeriod, cfg.RideThrough.Frequency)
	case config.PhaseChangeRideThrough:
		seq, err = svc.ProgramPCRT(ctx, cfg.RideThrough.TestNumber)
	}
	if err != nil {
		return err
	}
	logger.Info("disturbance profile programmed",
		zap.String("kind", string(kind)), zap.Float64("stop_time", seq.StopTime()))
	return nil
}

func daqProvider(cfg *config.Config, eut *p1547.EutParameters, logger *zap.Logger) (*daq.ModbusProvider, error) {
	provider, err := daq.CreateModbusProvider(cfg.DaqModbusTcp.Host, cfg.DaqModbusTcp.Port,
		uint8(cfg.DaqModbusTcp.UnitId), 0, eut.Phases,
		time.Duration(cfg.DaqModbusTcp.TimeoutMillis)*time.Millisecond,
		util.ComponentLogger("daq", logger), nil)
	if err != nil {
		return nil, err
	}
	if err := provider.Open(); err != nil {
		return nil, err
	}
	return provider, nil
}

func simulatorDriver(cfg *config.Config, logger *zap.Logger) (*simulator.ModbusSimulator, error) {
	driver, err := simulator.CreateModbusSimulator(cfg.SimModbusTcp.Host, cfg.SimModbusTcp.Port,
		uint8(cfg.SimModbusTcp.UnitId),
		time.Duration(cfg.SimModbusTcp.TimeoutMillis)*time.Millisecond, nil,
		util.ComponentLogger("simulator", logger))
	if err != nil {
		return nil, err
	}
	if err := driver.Open(); err != nil {
		return nil, err
	}
	return driver, nil
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("evaluation.function", "VV")
	viper.SetDefault("evaluation.curve_index", 1)
	viper.SetDefault("evaluation.power_level", 1.0)
	viper.SetDefault("evaluation.periods", 2)
	viper.SetDefault("evaluation.step_timeout_seconds", 300)
	viper.SetDefault("ride_through.category", 2)
	viper.SetDefault("ride_through.test_number", 1)
	viper.SetDefault("ride_through.hold_period", 299)
	viper.SetDefault("ride_through.frequency", 61.8)
	viper.SetDefault("daq_modbus_tcp.port", 502)
	viper.SetDefault("daq_modbus_tcp.unit_id", 1)
	viper.SetDefault("daq_modbus_tcp.timeout_millis", 1000)
	viper.SetDefault("sim_modbus_tcp.port", 502)
	viper.SetDefault("sim_modbus_tcp.unit_id", 2)
	viper.SetDefault("sim_modbus_tcp.timeout_millis", 1000)
	viper.SetDefault("mqtt.enable", false)
	viper.SetDefault("mqtt.base_topic", "der1547")
	viper.SetDefault("eut.phases", 3)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
