// Package exporter renders node results in the Prometheus text exposition
// format so a scraper can record speed curves during playback.
package exporter
