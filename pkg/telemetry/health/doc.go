// Package health provides liveness and readiness endpoints for a running
// data store.
//
// # Endpoints
//
//   - /health: liveness, always 200 while the process runs
//   - /ready: readiness, 503 when any registered check fails
//   - /version: build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("storage", svc.Ping)
//	checker.RegisterCheck("rotation", health.RotationCheck(files.Journal))
//	checker.RegisterCheck("cache", health.BacklogCheck(svc.Cache().DirtyCells, 10000))
//	health.Register(mux, checker, version, commit, buildTime)
//
// Checks run concurrently with a per-check timeout, so a backend that
// hangs reports unhealthy instead of blocking the probe.
package health
