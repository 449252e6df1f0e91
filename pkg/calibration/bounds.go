package calibration

// CheckBounds rejects offsets outside the configured fail-safe window. The
// bounds are inclusive: an offset exactly on either limit passes. This check
// runs on every calibration, whatever the alignment settings.
func CheckBounds(offset float64, cfg *Config) error {
	if offset < cfg.OffsetMin {
		return offsetTooLowError(offset, cfg.OffsetMin)
	}
	if offset > cfg.OffsetMax {
		return offsetTooHighError(offset, cfg.OffsetMax)
	}
	return nil
}

// checkEndstopBounds rejects an endstop pin measurement outside the
// configured window. Each side is disabled while its bound is zero. Bounds
// are inclusive.
func checkEndstopBounds(height float64, cfg *Config) error {
	if cfg.EndstopMin != 0 && height < cfg.EndstopMin {
		return endstopOutOfRangeError(height, cfg.EndstopMin, "min")
	}
	if cfg.EndstopMax != 0 && height > cfg.EndstopMax {
		return endstopOutOfRangeError(height, cfg.EndstopMax, "max")
	}
	return nil
}
