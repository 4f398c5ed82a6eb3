// Package utils provides internal utility functions for geotrack.
// This package is not intended to be imported by external code.
//
// It contains:
//   - Great-circle distance calculation
//   - Time formatting and conversion utilities
package utils
