// Package pipeline runs a crawl session through an ordered list of steps.
//
// A Pipeline executes Steps in sequence over a Run: the crawl itself, then
// the optional graph, download, database and report steps. DefaultPipeline
// assembles the usual order from a DefaultPipelineConfig.
//
// BatchProcessor crawls several seeds at once, each with its own Pipeline
// and Session, bounded by errgroup.SetLimit.
package pipeline
