//go:build !linux || !amd64

// Package dynarec provides stub types for non-Linux platforms.
// The real translator is only available on linux/amd64.
package dynarec
