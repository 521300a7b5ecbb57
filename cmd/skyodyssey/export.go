package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	skyodyssey "github.com/maru-775/SkyOdyssey-CLI"
)

// exportResults writes the ranked itineraries as JSON or CSV to path, or to
// stdout when path is empty.
func exportResults(result *skyodyssey.RunResult, format, path string) error {
	var out io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "csv":
		return writeCSV(out, result.Itineraries)
	default:
		return fmt.Errorf("unknown export format %q (want json or csv)", format)
	}
}

func writeCSV(out io.Writer, itineraries []skyodyssey.Itinerary) error {
	w := csv.NewWriter(out)
	header := []string{
		"rank", "total_price", "deal", "leg", "origin", "destination", "date",
		"price", "carrier", "stops", "departure", "arrival", "duration", "buy_link",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, itin := range itineraries {
		for j, leg := range itin.Legs {
			row := []string{
				strconv.Itoa(i + 1),
				strconv.FormatFloat(itin.TotalPrice, 'f', -1, 64),
				strconv.FormatBool(itin.Deal),
				strconv.Itoa(j + 1),
				leg.Origin,
				leg.Destination,
				leg.Date,
				strconv.FormatFloat(leg.Price, 'f', -1, 64),
				leg.Carrier,
				strconv.Itoa(leg.Stops),
				leg.Departure,
				leg.Arrival,
				leg.Duration,
				leg.BuyLink,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}
