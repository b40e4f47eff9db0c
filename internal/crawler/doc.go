// Package crawler walks a site from a seed URL and records what each page
// references.
//
// # Architecture
//
// The Spider pops (url, remaining depth) pairs from an explicit work stack.
// For each one it marks the URL visited in the session, fetches it through
// a Fetcher, parses it into a Document and hands it to the Extractor, which
// classifies every reference into the categories of a model.Scrape. Links
// of pages with remaining depth are pushed back onto the stack.
//
// Marking before fetching is what bounds the crawl: each URL is fetched at
// most once per session, so cycles terminate regardless of depth.
//
// # Components
//
//   - Spider: traversal, visited bookkeeping, failure handling
//   - Extractor: page to Scrape classification
//   - Document: charset-aware HTML tree queried by tag and attribute
//
// # Failures
//
// A failed fetch is not fatal. The page is recorded as a Scrape with every
// category empty and FetchError set, and the failure is logged with
// failure=transport.
//
// # Usage
//
//	spider := crawler.NewSpider(fetcher, crawler.WithStayInternal(true))
//	session := model.NewSession("http://example.com", 2, true)
//	err := spider.Crawl(ctx, session)
package crawler
