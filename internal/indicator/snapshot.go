package indicator

import "encoding/json"

// ADXSnapshot holds the serialized state of one symbol's calculator.
type ADXSnapshot struct {
	Symbol string `json:"symbol"`
	Period int    `json:"period"`

	Bars      int   `json:"bars"`
	PrevHigh  int64 `json:"prev_high"`
	PrevLow   int64 `json:"prev_low"`
	PrevClose int64 `json:"prev_close"`

	TRSeed    float64 `json:"tr_seed,omitempty"`
	PlusSeed  float64 `json:"plus_seed,omitempty"`
	MinusSeed float64 `json:"minus_seed,omitempty"`

	SmTR    float64 `json:"sm_tr"`
	SmPlus  float64 `json:"sm_plus"`
	SmMinus float64 `json:"sm_minus"`

	DIPlus  float64 `json:"di_plus"`
	DIMinus float64 `json:"di_minus"`

	DXCount int     `json:"dx_count"`
	DXSeed  float64 `json:"dx_seed,omitempty"`
	ADX     float64 `json:"adx"`
}

// EngineSnapshot holds the full state of the indicator engine.
type EngineSnapshot struct {
	Period  int           `json:"period"`
	Symbols []ADXSnapshot `json:"symbols"`
	Version int           `json:"version"` // schema version for forward compat
}

// Snapshot captures the full per-symbol state of the engine.
func (e *Engine) Snapshot() *EngineSnapshot {
	snap := &EngineSnapshot{
		Period:  e.period,
		Version: 1,
		Symbols: make([]ADXSnapshot, 0, len(e.state)),
	}
	for sym, a := range e.state {
		snap.Symbols = append(snap.Symbols, ADXSnapshot{
			Symbol:    sym,
			Period:    a.period,
			Bars:      a.bars,
			PrevHigh:  a.prevHigh,
			PrevLow:   a.prevLow,
			PrevClose: a.prevClose,
			TRSeed:    a.trSeed,
			PlusSeed:  a.plusSeed,
			MinusSeed: a.minusSeed,
			SmTR:      a.smTR,
			SmPlus:    a.smPlus,
			SmMinus:   a.smMinus,
			DIPlus:    a.diPlus,
			DIMinus:   a.diMinus,
			DXCount:   a.dxCount,
			DXSeed:    a.dxSeed,
			ADX:       a.adx,
		})
	}
	return snap
}

// RestoreEngine rebuilds an engine from a snapshot. Symbols whose snapshot
// period differs from the engine's configured period are skipped and will
// cold-start on their next bar.
func RestoreEngine(period int, snap *EngineSnapshot) *Engine {
	e := NewEngine(period)
	for _, s := range snap.Symbols {
		if s.Period != period {
			continue
		}
		e.state[s.Symbol] = &ADX{
			period:    s.Period,
			bars:      s.Bars,
			prevHigh:  s.PrevHigh,
			prevLow:   s.PrevLow,
			prevClose: s.PrevClose,
			trSeed:    s.TRSeed,
			plusSeed:  s.PlusSeed,
			minusSeed: s.MinusSeed,
			smTR:      s.SmTR,
			smPlus:    s.SmPlus,
			smMinus:   s.SmMinus,
			diPlus:    s.DIPlus,
			diMinus:   s.DIMinus,
			dxCount:   s.DXCount,
			dxSeed:    s.DXSeed,
			adx:       s.ADX,
		}
	}
	return e
}

// Marshal serializes the snapshot to JSON.
func (es *EngineSnapshot) Marshal() ([]byte, error) {
	return json.Marshal(es)
}

// UnmarshalSnapshot parses a serialized engine snapshot.
func UnmarshalSnapshot(data []byte) (*EngineSnapshot, error) {
	var snap EngineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
