package report

import "github.com/JakeFAU/calfire-history/internal/incident"

// Region groups counties for the county table.
type Region string

// Regions.
const (
	RegionBayArea  Region = "SF Bay Area"
	RegionSoCal    Region = "SoCal"
	RegionSierras  Region = "Sierras/Cascades"
	RegionMultiple Region = "Multiple counties"
	RegionOther    Region = "Other"
)

var countyRegions = map[string]Region{}

func init() {
	for region, counties := range map[Region][]string{
		RegionBayArea: {"Santa Clara", "San Mateo", "San Francisco", "Marin", "Sonoma", "Napa", "Solano", "Contra Costa", "Alameda"},
		RegionSierras: {"Modoc", "Lassen", "Plumas", "Sierra", "Nevada", "Placer", "El Dorado", "Amador", "Alpine", "Calaveras", "Tuolumne", "Mariposa", "Mono", "Inyo", "Madera"},
		RegionSoCal:   {"Imperial", "Kern", "Los Angeles", "Orange", "Riverside", "San Bernardino", "San Diego", "Santa Barbara", "San Luis Obispo", "Ventura"},
	} {
		for _, c := range counties {
			countyRegions[c] = region
		}
	}
}

// RegionOf classifies a normalized county name.
func RegionOf(county string) Region {
	if county == incident.MultipleCounties {
		return RegionMultiple
	}
	if r, ok := countyRegions[county]; ok {
		return r
	}
	return RegionOther
}
