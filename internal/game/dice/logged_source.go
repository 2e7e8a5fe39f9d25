package dice

import "go.uber.org/zap"

// LoggedSource wraps a Source and logs every draw at debug level, giving an
// audit trail of the random stream for a seeded encounter.
type LoggedSource struct {
	src    Source
	logger *zap.Logger
	draws  int
}

// NewLoggedSource creates a LoggedSource drawing from src.
//
// Precondition: src must be non-nil. A nil logger disables logging.
func NewLoggedSource(src Source, logger *zap.Logger) *LoggedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggedSource{src: src, logger: logger}
}

// Intn implements Source.
func (l *LoggedSource) Intn(n int) int {
	v := l.src.Intn(n)
	l.draws++
	l.logger.Debug("random draw",
		zap.Int("draw", l.draws),
		zap.String("kind", "intn"),
		zap.Int("n", n),
		zap.Int("value", v),
	)
	return v
}

// Float64 implements Source.
func (l *LoggedSource) Float64() float64 {
	v := l.src.Float64()
	l.draws++
	l.logger.Debug("random draw",
		zap.Int("draw", l.draws),
		zap.String("kind", "float64"),
		zap.Float64("value", v),
	)
	return v
}

// Draws returns the number of values drawn so far.
func (l *LoggedSource) Draws() int { return l.draws }
