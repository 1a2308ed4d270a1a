package btree

import "go.uber.org/zap"

// Logger is a thin alias so callers outside this package don't need a
// direct zap import to build a Config. Structured fields (page ids,
// transaction ids, offsets) are logged with zap's Sugar key/value pairs,
// the same convention other_examples/...ignite__internal-index-model.go.go
// uses for its index structures.
type Logger = zap.SugaredLogger

func nopLogger() *Logger {
	return zap.NewNop().Sugar()
}

func loggerOrNop(l *Logger) *Logger {
	if l == nil {
		return nopLogger()
	}
	return l
}
