// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// They cover the hot paths of embedcli:
//   - configuration loading (CUE schema validation through Viper)
//   - line assembly, tokenizing and dispatch in a console session
//   - saving network settings to the TOML and bolt stores
//
// To generate a profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
