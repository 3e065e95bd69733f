package p1547

// EutConfig carries the nameplate ratings supplied by the test runner.
// Frequency fields may be left zero for EUTs that are not frequency tested.
type EutConfig struct {
	VNom   float64
	SRated float64
	VLow   float64
	VHigh  float64

	FNom float64
	FMin float64
	FMax float64

	PRated float64
	// PRatedPrime is the absorption rating, negative by convention.
	// Zero means "derive as -PRated".
	PRatedPrime float64
	PMin        float64
	VarRated    float64

	Phases Phases
	Absorb bool

	// StartupTime is the EUT startup offset T0 used by ride-through
	// sequence timing.
	StartupTime float64
}

// MRA holds the minimum required accuracy (IEEE 1547-2018 Table 3) for
// steady-state and transient measurements, derived once from the ratings.
type MRA struct {
	Voltage       float64 // 1% of Vnom
	ActivePower   float64 // 5% of Srated
	ReactivePower float64 // 5% of Srated
	Frequency     float64 // 10 mHz
	Time          float64 // 1% of measured duration (unitless factor)
	PowerFactor   float64

	// Transient time frame
	VoltageTransient   float64 // 2% of Vnom
	FrequencyTransient float64 // 100 mHz
	TimeTransient      float64 // 2 cycles at 60 Hz
}

// Of returns the steady-state accuracy for q. The Duration entry is the
// relative factor applied to the measured duration.
func (m MRA) Of(q Quantity) float64 {
	switch q {
	case Voltage:
		return m.Voltage
	case ActivePower:
		return m.ActivePower
	case ReactivePower:
		return m.ReactivePower
	case Frequency:
		return m.Frequency
	case Duration:
		return m.Time
	case PowerFactor:
		return m.PowerFactor
	default:
		return 0
	}
}

// EutParameters is the immutable snapshot of the equipment ratings every
// other component reads. Construct it once per test run.
type EutParameters struct {
	VNom   float64
	SRated float64
	VLow   float64
	VHigh  float64

	FNom float64
	FMin float64
	FMax float64

	PRated      float64
	PRatedPrime float64
	PMin        float64
	VarRated    float64

	Phases Phases
	Absorb bool

	StartupTime float64

	MRA MRA
}

// NewEutParameters validates the nameplate values and derives the MRA table.
func NewEutParameters(cfg EutConfig) (*EutParameters, error) {
	if cfg.VNom <= 0 {
		return nil, configErrorf("eut v_nom must be positive, got %v", cfg.VNom)
	}
	if cfg.SRated <= 0 {
		return nil, configErrorf("eut s_rated must be positive, got %v", cfg.SRated)
	}
	if cfg.PRated <= 0 {
		return nil, configErrorf("eut p_rated must be positive, got %v", cfg.PRated)
	}
	if cfg.VLow >= cfg.VHigh {
		return nil, configErrorf("eut voltage limits are inverted: v_low=%v v_high=%v", cfg.VLow, cfg.VHigh)
	}
	switch cfg.Phases {
	case SinglePhase, SplitPhase, ThreePhase:
	default:
		return nil, configErrorf("eut phase configuration %d is unknown", cfg.Phases)
	}

	pPrime := cfg.PRatedPrime
	if pPrime == 0 {
		pPrime = -cfg.PRated
	}

	eut := &EutParameters{
		VNom:        cfg.VNom,
		SRated:      cfg.SRated,
		VLow:        cfg.VLow,
		VHigh:       cfg.VHigh,
		FNom:        cfg.FNom,
		FMin:        cfg.FMin,
		FMax:        cfg.FMax,
		PRated:      cfg.PRated,
		PRatedPrime: pPrime,
		PMin:        cfg.PMin,
		VarRated:    cfg.VarRated,
		Phases:      cfg.Phases,
		Absorb:      cfg.Absorb,
		StartupTime: cfg.StartupTime,
		MRA: MRA{
			Voltage:            0.01 * cfg.VNom,
			ActivePower:        0.05 * cfg.SRated,
			ReactivePower:      0.05 * cfg.SRated,
			Frequency:          0.01,
			Time:               0.01,
			PowerFactor:        0.01,
			VoltageTransient:   0.02 * cfg.VNom,
			FrequencyTransient: 0.1,
			TimeTransient:      2.0 / 60.0,
		},
	}
	return eut, nil
}
