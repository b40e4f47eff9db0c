// Package main provides the entry point for the spidey CLI.
//
// spidey crawls a website from a seed URL up to a fixed link depth and
// sorts every URL it finds into categories such as links, images, PDF and
// CSV files. It can save the classified files, write a link graph for
// each page and keep every crawl in a local session history.
//
// Usage:
//
//	spidey crawl <url>
//	spidey crawl --depth 2 --save pdf,img <url>
//	spidey history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
