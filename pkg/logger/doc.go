// Package logger builds *slog.Logger instances for the drip daemon and its
// packages.
//
// New creates a JSON or text handler, applies static attributes and wraps the
// handler with LogHandlerDecorator, which runs every registered ContextExtractor
// on each record. The reminder processor uses this to stamp every line logged
// during a batch with the batch id:
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "dripd"),
//	    logger.WithLevelName(cfg.LogLevel),
//	    logger.WithContextExtractors(reminder.BatchIDExtractor),
//	)
//	logger.SetAsDefault(log)
//
// Attribute helpers (TaskID, Stage, Recipient, Channel, Error, ...) keep key
// names consistent across packages. Error and Errors return an empty Attr for
// nil errors, so they can be passed unconditionally.
package logger
