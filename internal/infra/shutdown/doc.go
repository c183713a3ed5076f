// Package shutdown provides graceful shutdown for DeltaMesh.
//
// This package handles process termination:
//
//   - Signal handling (SIGINT, SIGTERM) and programmatic triggers
//   - Named cleanup hooks run in reverse registration order
//   - One shared timeout for all hooks
//
// Usage:
//
//	h := shutdown.NewHandler(30*time.Second, logger)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
