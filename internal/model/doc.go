// Package model defines the data structures shared across spidey.
//
// This package contains the following main types:
//   - Scrape: the classification record of one fetched page
//   - URLSet: a set of absolute URLs backing each Scrape category
//   - Session: one crawl run with its visited-set and result sequence
//   - Download: the outcome of persisting one classified URL
//
// Models live in their own package because the crawler, storage, database
// and report packages all need them, and keeping them here avoids import
// cycles. All of them serialize to JSON for reports and database storage.
package model
