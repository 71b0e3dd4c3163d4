// Package cli implements the command-line interface for club-websites.
//
// The cli package provides the Cobra-based root command. It layers the
// configuration (defaults, JSON file, environment, flags), loads the region
// files, runs the website checks with console progress and writes the JSON
// and CSV reports. Interrupting a run stops it without writing a report.
package cli
