package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	skyodyssey "github.com/maru-775/SkyOdyssey-CLI"
)

func main() {
	var (
		serve = flag.Bool("serve", false, "run as an HTTP daemon instead of a one-shot search")

		providerURL = flag.String("provider", "", "fare provider base URL (defaults to $PROVIDER_URL)")

		origins      = flag.String("from", "", "origin airport code(s), comma-separated for multi-origin")
		destination  = flag.String("to", "", "destination airport code (basic modes)")
		date         = flag.String("date", "", "departure date YYYY-MM-DD")
		returnDate   = flag.String("return-date", "", "return date YYYY-MM-DD (round trip)")
		odyssey      = flag.Bool("odyssey", false, "3-leg odyssey search (origin -> A -> B -> return)")
		anywhere     = flag.Bool("anywhere", false, "fan a single leg out across the region")
		region       = flag.String("region", "Europe", "destination region (or \"All\")")
		limit        = flag.Int("limit", 2, "branching factor: candidates kept per node at each stage")
		stay1        = flag.String("stay1", "2", "days in City A, fixed (\"2\") or range (\"2-4\")")
		stay2        = flag.String("stay2", "2", "days in City B, fixed or range")
		returnOrigin = flag.String("return-origin", "", "open-jaw: return to this airport instead of the origin")

		budget = flag.Float64("budget", 0, "maximum total price, 0 = unbounded")
		deal   = flag.Float64("deal", 0, "flag itineraries at or under this total as deals")

		excludeCountries = flag.String("exclude-countries", "", "comma-separated countries to skip")
		excludeAirports  = flag.String("exclude-airports", "", "comma-separated airport codes to skip")
		airlines         = flag.String("airlines", "", "only these carriers, comma-separated")
		excludeAirlines  = flag.String("exclude-airlines", "", "never these carriers, comma-separated")
		direct           = flag.Bool("direct", false, "direct flights only")
		sameCountry      = flag.Bool("allow-same-country", false, "allow two stops in the same country")

		departAfter  = flag.String("depart-after", "", "earliest outbound departure, HH:MM")
		departBefore = flag.String("depart-before", "", "latest outbound departure, HH:MM")
		arriveBefore = flag.String("arrive-before", "", "latest outbound arrival, HH:MM")
		retAfter     = flag.String("return-depart-after", "", "earliest return departure, HH:MM")
		retBefore    = flag.String("return-depart-before", "", "latest return departure, HH:MM")

		dateFlex   = flag.Int("date-flex", 0, "expand dates by +/- N days")
		adults     = flag.Int("adults", 1, "number of adult passengers")
		seat       = flag.String("seat", "economy", "seat class")
		sortKey    = flag.String("sort", "price", "sort key: price, duration, stops or departure")
		maxResults = flag.Int("max-results", 0, "truncate ranked output, 0 = keep all")

		exportFormat = flag.String("export", "", "export results as json or csv")
		exportPath   = flag.String("out", "", "export file path (default stdout)")
		debug        = flag.Bool("debug", false, "verbose per-fetch tracing")
	)
	flag.Parse()

	if *serve {
		if err := runServer(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	baseURL := *providerURL
	if baseURL == "" {
		baseURL = os.Getenv("PROVIDER_URL")
	}
	if baseURL == "" {
		fmt.Fprintln(os.Stderr, "error: -provider or $PROVIDER_URL is required")
		os.Exit(2)
	}
	if *origins == "" || *date == "" {
		fmt.Fprintln(os.Stderr, "error: -from and -date are required")
		os.Exit(2)
	}

	window, err := buildWindow(*departAfter, *departBefore, *arriveBefore)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	returnWindow, err := buildWindow(*retAfter, *retBefore, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	logger := skyodyssey.NewSimpleLogger()
	engine := skyodyssey.New(
		skyodyssey.WithProvider(skyodyssey.NewHTTPProvider(baseURL, nil)),
		skyodyssey.WithLogger(logger),
		skyodyssey.WithDebug(*debug),
	)
	if err := engine.ValidationError(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *skyodyssey.RunResult
	switch {
	case *odyssey:
		s1, err := parseStayRange(*stay1)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(2)
		}
		s2, err := parseStayRange(*stay2)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(2)
		}
		result, err = engine.Run(ctx, skyodyssey.SearchParams{
			Origins:           splitCSV(*origins),
			Date:              *date,
			DateFlex:          *dateFlex,
			Region:            *region,
			Limit:             *limit,
			Stay1:             s1,
			Stay2:             s2,
			ReturnOrigin:      *returnOrigin,
			MaxBudget:         *budget,
			DealThreshold:     *deal,
			ExcludedCountries: splitCSV(*excludeCountries),
			ExcludedAirports:  splitCSV(*excludeAirports),
			IncludeAirlines:   splitCSV(*airlines),
			ExcludeAirlines:   splitCSV(*excludeAirlines),
			DirectOnly:        *direct,
			Window:            window,
			ReturnWindow:      returnWindow,
			AllowSameCountry:  *sameCountry,
			Adults:            *adults,
			Seat:              *seat,
			MaxResults:        *maxResults,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case *anywhere:
		result, err = engine.SearchAnywhere(ctx, skyodyssey.AnywhereParams{
			Origin:            firstCSV(*origins),
			Date:              *date,
			DateFlex:          *dateFlex,
			Region:            *region,
			MaxBudget:         *budget,
			DealThreshold:     *deal,
			ExcludedCountries: splitCSV(*excludeCountries),
			ExcludedAirports:  splitCSV(*excludeAirports),
			IncludeAirlines:   splitCSV(*airlines),
			ExcludeAirlines:   splitCSV(*excludeAirlines),
			DirectOnly:        *direct,
			Window:            window,
			Adults:            *adults,
			Seat:              *seat,
			SortKey:           skyodyssey.ParseSortKey(*sortKey),
			MaxResults:        *maxResults,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	default:
		if *destination == "" {
			fmt.Fprintln(os.Stderr, "error: -to is required for a basic search (or use -odyssey / -anywhere)")
			os.Exit(2)
		}
		result, err = engine.SearchTrip(ctx, skyodyssey.TripParams{
			Origin:          firstCSV(*origins),
			Destination:     *destination,
			Date:            *date,
			ReturnDate:      *returnDate,
			DateFlex:        *dateFlex,
			MaxBudget:       *budget,
			DealThreshold:   *deal,
			IncludeAirlines: splitCSV(*airlines),
			ExcludeAirlines: splitCSV(*excludeAirlines),
			DirectOnly:      *direct,
			Window:          window,
			ReturnWindow:    returnWindow,
			Adults:          *adults,
			Seat:            *seat,
			SortKey:         skyodyssey.ParseSortKey(*sortKey),
			MaxResults:      *maxResults,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	if *exportFormat != "" {
		if err := exportResults(result, *exportFormat, *exportPath); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}
	printResults(result)
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstCSV(s string) string {
	if parts := splitCSV(s); len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// parseStayRange accepts "2" or "2-4".
func parseStayRange(s string) (skyodyssey.StayRange, error) {
	s = strings.TrimSpace(s)
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		min, err1 := strconv.Atoi(strings.TrimSpace(lo))
		max, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil || min < 1 || max < min {
			return skyodyssey.StayRange{}, fmt.Errorf("invalid stay range %q", s)
		}
		return skyodyssey.StayRange{Min: min, Max: max}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return skyodyssey.StayRange{}, fmt.Errorf("invalid stay %q", s)
	}
	return skyodyssey.StayRange{Min: n, Max: n}, nil
}

func buildWindow(after, before, arriveBefore string) (skyodyssey.TimeWindow, error) {
	var w skyodyssey.TimeWindow
	var ok bool
	if after != "" {
		if w.DepartAfter, ok = skyodyssey.ParseHHMM(after); !ok {
			return w, fmt.Errorf("invalid time %q (want HH:MM)", after)
		}
	}
	if before != "" {
		if w.DepartBefore, ok = skyodyssey.ParseHHMM(before); !ok {
			return w, fmt.Errorf("invalid time %q (want HH:MM)", before)
		}
	}
	if arriveBefore != "" {
		if w.ArriveBefore, ok = skyodyssey.ParseHHMM(arriveBefore); !ok {
			return w, fmt.Errorf("invalid time %q (want HH:MM)", arriveBefore)
		}
	}
	return w, nil
}

func printResults(result *skyodyssey.RunResult) {
	if len(result.Itineraries) == 0 {
		fmt.Println("No itineraries found.")
		if g := result.Guidance; g != nil {
			fmt.Println("  " + g.Reason)
			if g.CheapestTotal > 0 {
				fmt.Printf("  cheapest seen: %.0f\n", g.CheapestTotal)
			}
			for _, alt := range g.ClosestAlternatives {
				fmt.Printf("  near miss: %s (%.0f)\n", routeLine(alt), alt.TotalPrice)
			}
		}
		return
	}
	for i, itin := range result.Itineraries {
		marker := ""
		if itin.Deal {
			marker = " [DEAL]"
		}
		fmt.Printf("%2d. %s  total %.0f%s\n", i+1, routeLine(itin), itin.TotalPrice, marker)
		for _, leg := range itin.Legs {
			fmt.Printf("      %s -> %s  %s  %.0f  %s (%d stops)\n",
				leg.Origin, leg.Destination, leg.Date, leg.Price, leg.Carrier, leg.Stops)
		}
		if itin.Warning != "" {
			fmt.Println("      warning: " + itin.Warning)
		}
	}
}

func routeLine(itin skyodyssey.Itinerary) string {
	parts := make([]string, 0, len(itin.Legs)+1)
	for _, leg := range itin.Legs {
		parts = append(parts, leg.Origin)
	}
	if n := len(itin.Legs); n > 0 {
		parts = append(parts, itin.Legs[n-1].Destination)
	}
	return strings.Join(parts, " -> ")
}
