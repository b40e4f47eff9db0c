// Package classify turns the raw references of one page into a set of
// absolute, deduplicated URLs of a single role.
//
// # Filters
//
//   - Pages: references without a file extension (navigable links)
//   - Files: references with any file extension
//   - OfType: references with one given extension
//   - All: every reference, used for image sources
//
// A Classifier created with stayInternal drops URLs whose host differs
// from the page's host. References that cannot be resolved are logged
// with failure=malformed_url and dropped.
package classify
