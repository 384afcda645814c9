// Package evidence normalizes raw per-source device detection records into
// badge-classified dossiers. Everything here is pure: no shared state, no I/O,
// safe to call from any number of scan pipelines at once.
package evidence
