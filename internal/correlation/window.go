package correlation

import (
	"sort"
	"time"

	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

// ipGroup is the timestamped events of one source IP, sorted by time
type ipGroup struct {
	ip     string
	events []*models.Event
}

// groupBySourceIP partitions events by source IP. Events without a source IP
// or timestamp are dropped. Groups come back in IP order, events within a
// group in time order (ties broken by ID) so runs are reproducible.
func groupBySourceIP(events []*models.Event) []ipGroup {
	byIP := make(map[string][]*models.Event)
	for _, e := range events {
		if e.SrcIP == "" || !e.HasTime() {
			continue
		}
		byIP[e.SrcIP] = append(byIP[e.SrcIP], e)
	}

	groups := make([]ipGroup, 0, len(byIP))
	for ip, evts := range byIP {
		sort.SliceStable(evts, func(i, j int) bool {
			ti, tj := *evts[i].EventTime, *evts[j].EventTime
			if ti.Equal(tj) {
				return evts[i].ID < evts[j].ID
			}
			return ti.Before(tj)
		})
		groups = append(groups, ipGroup{ip: ip, events: evts})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ip < groups[j].ip })

	return groups
}

// windowFrom returns the events starting at anchor whose time is at most
// anchor time + width. events must be sorted by time.
func windowFrom(events []*models.Event, anchor int, width time.Duration) []*models.Event {
	end := events[anchor].EventTime.Add(width)
	n := anchor
	for n < len(events) && !events[n].EventTime.After(end) {
		n++
	}
	return events[anchor:n]
}
