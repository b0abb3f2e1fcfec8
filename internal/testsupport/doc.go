// Package testsupport holds shared fixtures for package tests: temp-dir backed
// configs, stub executables on PATH, and history stores with cleanup.
package testsupport
