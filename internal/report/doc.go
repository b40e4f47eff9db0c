// Package report renders crawl sessions as plain text, JSON or Markdown.
package report
