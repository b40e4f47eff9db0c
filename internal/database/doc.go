// Package database stores crawl sessions in SQLite.
//
// A SessionDB keeps one row per crawl run, the ordered scrapes of the run
// with every classified URL, and the download records produced when files
// were saved to disk. The driver is modernc.org/sqlite, so no cgo is needed.
package database
