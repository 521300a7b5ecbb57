package skyodyssey

import (
	"sort"
	"strings"
)

// AirportDirectory supplies the candidate airports per region, the
// airport→country mapping used by the exclusion and country-diversity rules,
// and the city-hub grouping used for airport-change warnings. It is
// injectable so tests run against synthetic datasets.
type AirportDirectory struct {
	regions   map[string][]string
	countries map[string]string
	hubs      map[string]string
}

// NewAirportDirectory builds a directory from explicit tables. The hub table
// maps airport code to city name.
func NewAirportDirectory(regions map[string][]string, countries map[string]string, hubs map[string]string) *AirportDirectory {
	if regions == nil {
		regions = map[string][]string{}
	}
	if countries == nil {
		countries = map[string]string{}
	}
	if hubs == nil {
		hubs = map[string]string{}
	}
	return &AirportDirectory{regions: regions, countries: countries, hubs: hubs}
}

// AirportsForRegion returns the region's airports; "All" (or empty) unions
// every region. The union walks regions in sorted name order so the candidate
// list, and with it the engine's discovery order, is stable across calls.
func (d *AirportDirectory) AirportsForRegion(region string) []string {
	region = strings.TrimSpace(region)
	if region == "" || strings.EqualFold(region, "All") {
		var all []string
		for _, name := range d.Regions() {
			all = append(all, d.regions[name]...)
		}
		return all
	}
	for name, airports := range d.regions {
		if strings.EqualFold(name, region) {
			return append([]string(nil), airports...)
		}
	}
	return nil
}

// Regions lists the known region names in sorted order.
func (d *AirportDirectory) Regions() []string {
	out := make([]string, 0, len(d.regions))
	for name := range d.regions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Country returns the country for an airport code, or "" if unknown.
func (d *AirportDirectory) Country(code string) string {
	return d.countries[strings.ToUpper(code)]
}

// Hub returns the city-hub name for an airport code, or "" if it belongs to
// no known multi-airport city.
func (d *AirportDirectory) Hub(code string) string {
	return d.hubs[strings.ToUpper(code)]
}

// IsExcluded reports whether the airport is ruled out by the airport or
// country exclusion lists.
func (d *AirportDirectory) IsExcluded(code string, excludedCountries, excludedAirports []string) bool {
	code = strings.ToUpper(code)
	for _, a := range excludedAirports {
		if strings.EqualFold(a, code) {
			return true
		}
	}
	if country := d.Country(code); country != "" {
		for _, c := range excludedCountries {
			if strings.EqualFold(c, country) {
				return true
			}
		}
	}
	return false
}

// Candidates returns the region's airports minus the excluded ones,
// preserving dataset order.
func (d *AirportDirectory) Candidates(region string, excludedCountries, excludedAirports []string) []string {
	airports := d.AirportsForRegion(region)
	if len(excludedCountries) == 0 && len(excludedAirports) == 0 {
		return airports
	}
	filtered := airports[:0:0]
	for _, code := range airports {
		if !d.IsExcluded(code, excludedCountries, excludedAirports) {
			filtered = append(filtered, code)
		}
	}
	return filtered
}

// DefaultDirectory returns the built-in dataset of major airports by region.
func DefaultDirectory() *AirportDirectory {
	regions := map[string][]string{
		"Europe": {
			// Major hubs & Western Europe
			"CDG", "ORY", "NCE", "LYS", "MRS", "TLS", "BOD", "NTE",
			"LHR", "LGW", "STN", "LTN", "MAN", "EDI", "GLA", "BHX", "BRS",
			"DUB", "ORK", "SNN", "NOC",
			"FRA", "MUC", "BER", "DUS", "HAM", "STR", "CGN", "LEJ", "HAJ", "NUE",
			"AMS", "EIN", "BRU", "CRL",
			"MAD", "BCN", "PMI", "AGP", "VLC", "SVQ", "LIS", "OPO", "FAO",
			"FCO", "MXP", "VCE", "BGY", "NAP", "PSA", "BLQ",
			"ZRH", "GVA", "VIE", "CPH", "OSL", "ARN", "HEL", "KEF",
			// Eastern Europe & Balkans
			"WAW", "KRK", "GDN", "PRG", "BUD", "OTP", "SOF", "BEG", "SKP", "TIA",
			"RIX", "VNO", "TLL", "MSQ", "KBP",
			"ATH", "SKG", "HER", "IST", "SAW",
		},
		"North America": {
			"ATL", "LAX", "ORD", "DFW", "DEN", "JFK", "SFO", "SEA", "LAS", "MCO",
			"EWR", "CLT", "PHX", "IAH", "MIA", "YYZ", "YVR", "MEX", "BOS", "IAD",
		},
		"Asia": {
			"HND", "ICN", "SIN", "HKG", "BKK", "PVG", "PEK", "NRT", "TPE", "KUL",
			"DEL", "BOM", "DXB", "DOH", "AUH", "SGN", "HAN", "MNL", "CGK",
		},
		"Oceania": {
			"SYD", "MEL", "BNE", "PER", "AKL", "CHC",
		},
		"South America": {
			"GRU", "BOG", "SCL", "LIM", "EZE", "GIG",
		},
		"Africa": {
			"JNB", "CPT", "CAI", "CAS", "NBO", "ADD",
		},
	}

	countries := map[string]string{
		"CDG": "France", "ORY": "France", "NCE": "France", "LYS": "France",
		"MRS": "France", "TLS": "France", "BOD": "France", "NTE": "France",
		"LHR": "UK", "LGW": "UK", "STN": "UK", "LTN": "UK", "MAN": "UK",
		"EDI": "UK", "GLA": "UK", "BHX": "UK", "BRS": "UK",
		"DUB": "Ireland", "ORK": "Ireland", "SNN": "Ireland", "NOC": "Ireland",
		"FRA": "Germany", "MUC": "Germany", "BER": "Germany", "DUS": "Germany",
		"HAM": "Germany", "STR": "Germany", "CGN": "Germany", "LEJ": "Germany",
		"HAJ": "Germany", "NUE": "Germany",
		"AMS": "Netherlands", "EIN": "Netherlands", "BRU": "Belgium", "CRL": "Belgium",
		"MAD": "Spain", "BCN": "Spain", "PMI": "Spain", "AGP": "Spain",
		"VLC": "Spain", "SVQ": "Spain", "LIS": "Portugal", "OPO": "Portugal", "FAO": "Portugal",
		"FCO": "Italy", "MXP": "Italy", "VCE": "Italy", "BGY": "Italy",
		"NAP": "Italy", "PSA": "Italy", "BLQ": "Italy",
		"ZRH": "Switzerland", "GVA": "Switzerland", "VIE": "Austria",
		"CPH": "Denmark", "OSL": "Norway", "ARN": "Sweden", "HEL": "Finland", "KEF": "Iceland",
		"WAW": "Poland", "KRK": "Poland", "GDN": "Poland", "PRG": "Czechia",
		"BUD": "Hungary", "OTP": "Romania", "SOF": "Bulgaria", "BEG": "Serbia",
		"SKP": "North Macedonia", "TIA": "Albania",
		"RIX": "Latvia", "VNO": "Lithuania", "TLL": "Estonia", "MSQ": "Belarus", "KBP": "Ukraine",
		"ATH": "Greece", "SKG": "Greece", "HER": "Greece", "IST": "Turkey", "SAW": "Turkey",
	}

	cityHubs := map[string][]string{
		"Paris":    {"CDG", "ORY", "BVA"},
		"London":   {"LHR", "LGW", "STN", "LTN", "LCY", "SEN"},
		"Milan":    {"MXP", "LIN", "BGY"},
		"Rome":     {"FCO", "CIA"},
		"Berlin":   {"BER"},
		"Madrid":   {"MAD"},
		"Barcelona": {"BCN"},
		"Istanbul": {"IST", "SAW"},
		"New York": {"JFK", "EWR", "LGA"},
		"Tokyo":    {"HND", "NRT"},
	}
	hubs := make(map[string]string)
	for city, codes := range cityHubs {
		for _, code := range codes {
			hubs[code] = city
		}
	}

	return NewAirportDirectory(regions, countries, hubs)
}
