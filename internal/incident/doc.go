// Package incident defines the wildfire records and raw extraction types shared by
// the scraping, normalization, caching, and reconciliation stages.
package incident
