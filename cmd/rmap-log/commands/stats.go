package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rmap-protocol/rmap-go/pkg/log"
	"github.com/rmap-protocol/rmap-go/pkg/wire"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Transactions      map[string]int
	ReplyStatuses     map[wire.Status]int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}

	latencies []time.Duration
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Commands  int
	Replies   int
}

// Collect reads every event of path into a Stats.
func Collect(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		Transactions:      make(map[string]int),
		ReplyStatuses:     make(map[wire.Status]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return stats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}

	switch {
	case event.Packet != nil && event.Packet.Type == log.PacketTypeCommand:
		conn.Commands++
	case event.Packet != nil && event.Packet.Type == log.PacketTypeReply:
		conn.Replies++
		if event.Packet.Status != nil {
			s.ReplyStatuses[*event.Packet.Status]++
		}
	case event.Transaction != nil && event.Transaction.State != "PENDING":
		s.Transactions[event.Transaction.State]++
		if event.Transaction.Latency != nil {
			s.latencies = append(s.latencies, *event.Transaction.Latency)
		}
	case event.Error != nil:
		s.Errors++
	}
}

// Latency returns the median and maximum transaction latency.
func (s *Stats) Latency() (median, slowest time.Duration) {
	if len(s.latencies) == 0 {
		return 0, 0
	}
	sorted := append([]time.Duration(nil), s.latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2], sorted[len(sorted)-1]
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== RMAP Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerLink, log.LayerRMAP, log.LayerEngine} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryPacket, log.CategoryControl, log.CategoryState, log.CategoryError, log.CategoryTransaction} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Transactions) > 0 {
		fmt.Fprintln(w, "Transactions:")
		for _, state := range []string{"FULFILLED", "TIMED_OUT", "ABORTED"} {
			if count := stats.Transactions[state]; count > 0 {
				fmt.Fprintf(w, "  %-12s %d\n", state+":", count)
			}
		}
		if median, slowest := stats.Latency(); slowest > 0 {
			fmt.Fprintf(w, "  Latency:     median %s, max %s\n", formatDuration(median), formatDuration(slowest))
		}
		fmt.Fprintln(w)
	}

	if len(stats.ReplyStatuses) > 0 {
		statuses := make([]wire.Status, 0, len(stats.ReplyStatuses))
		for s := range stats.ReplyStatuses {
			statuses = append(statuses, s)
		}
		sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })

		fmt.Fprintln(w, "Reply Status:")
		for _, s := range statuses {
			fmt.Fprintf(w, "  0x%02x %-28s %d\n", uint8(s), s.String(), stats.ReplyStatuses[s])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.Commands > 0 || c.stats.Replies > 0 {
				fmt.Fprintf(w, "           Commands: %d  Replies: %d\n", c.stats.Commands, c.stats.Replies)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
