// Package govfeed walks the official incident list, which renders client
// side as numbered pages of positional cells. A Scraper clicks through the
// pager and reads rows until the page or row probes come back empty.
package govfeed
