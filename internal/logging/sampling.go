package logging

import (
	"go.uber.org/zap/zapcore"
)

// newSampledCore samples entries below Error. Warn and Error always matter
// during a quota incident, so only Debug/Info volume is thinned.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	kept := &levelFilterCore{Core: core, minLevel: zapcore.WarnLevel}
	chatty := &levelFilterCore{Core: core, maxLevel: zapcore.InfoLevel, hasMax: true}

	sampled := zapcore.NewSamplerWithOptions(
		chatty,
		cfg.Tick.Duration(),
		cfg.Initial,
		cfg.Thereafter,
	)

	return zapcore.NewTee(kept, sampled)
}

// levelFilterCore passes entries within [minLevel, maxLevel].
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
	maxLevel zapcore.Level
	hasMax   bool
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	if c.minLevel != 0 && lvl < c.minLevel {
		return false
	}
	if c.hasMax && lvl > c.maxLevel {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:     c.Core.With(fields),
		minLevel: c.minLevel,
		maxLevel: c.maxLevel,
		hasMax:   c.hasMax,
	}
}
