// Package logging provides structured logging for keeper.
//
// It wraps log/slog with a JSON handler and adds persistent attributes so a
// line can be traced back to the guarded resource and the worker that
// produced it.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/keeper", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	dirLog := logger.WithResource("directory")
//	dirLog.WithWorker("writer-1").WithKind("writer").Info("upserted", "name", "Jean")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"upserted","resource":"directory","worker":"writer-1","kind":"writer","name":"Jean"}
//
// An empty directory sends output to stderr. Use [NopLogger] in tests.
// [NewLoggerWithRotation] rotates keeper.log by size through a
// [RotatingWriter].
//
// # Reading Logs
//
// [ReadEntries] parses keeper.log back into [Entry] values, [FilterEntries]
// narrows them by level, time, resource, worker or text, and [Export]
// writes them as JSON, text or CSV.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// share the parent's handler and file.
package logging
