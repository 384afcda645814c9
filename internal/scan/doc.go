// Package scan is the business boundary for device scans. It enriches a batch
// of raw records with bridge output, classifies it, pushes the verdicts into
// the tracker and announces devices it has not seen before.
package scan
