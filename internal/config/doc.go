// Package config holds the crawl configuration, its defaults and the
// optional .spidey YAML file with per-site settings.
package config
