package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/inference-sim/qsim/sim"
)

var csvHeader = []string{
	"id", "kind", "original_class", "class", "node", "arrival_date", "waiting_time",
	"service_start_date", "service_time", "service_end_date", "time_blocked",
	"exit_date", "destination", "queue_size_at_arrival", "queue_size_at_departure", "server_id",
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

func formatOpt(o sim.OptTime) string {
	if v, ok := o.Get(); ok {
		return formatFloat(v)
	}
	return ""
}

func formatSize(n int) string {
	if n == sim.NoQueueSize {
		return ""
	}
	return strconv.Itoa(n)
}

// WriteCSV writes one row per record, unset fields left empty.
func WriteCSV(w io.Writer, records []sim.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing records header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.ID),
			string(r.Kind),
			strconv.Itoa(r.OriginalClass),
			strconv.Itoa(r.Class),
			strconv.Itoa(r.Node),
			formatFloat(r.ArrivalDate),
			formatOpt(r.WaitingTime),
			formatOpt(r.ServiceStartDate),
			formatOpt(r.ServiceTime),
			formatOpt(r.ServiceEndDate),
			formatOpt(r.TimeBlocked),
			formatFloat(r.ExitDate),
			strconv.Itoa(r.Destination),
			formatSize(r.QueueSizeAtArrival),
			formatSize(r.QueueSizeAtDeparture),
			strconv.Itoa(r.ServerID),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing record %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
