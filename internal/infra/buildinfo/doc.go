// Package buildinfo exposes the DeltaMesh version, commit and build time.
// Both binaries print it for --version and the server exports it as the
// deltamesh_build_info metric.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/deltamesh-go/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
