// Package util provides statistics helpers used by db.KVTable implementations
// and the fbkv benchmark command:
//   - SizeHistogram: bucketed size distribution for cheap size estimates
//   - Stats: mean, deviation, min and max of a sample set
package util
