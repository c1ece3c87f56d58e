// Package httpserver runs the daemon's HTTP API with graceful shutdown.
//
// Run serves until its context is cancelled, then calls http.Server.Shutdown
// bounded by the shutdown timeout. Signal handling is left to the caller,
// which usually derives the context from signal.NotifyContext and runs the
// server inside an errgroup next to the other daemon components.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// LivenessHandler and ReadinessHandler back the /health endpoints.
// Errors are wrapped with ErrStart and ErrShutdown.
package httpserver
