package tracker

import (
	"github.com/rs/zerolog"
	"sort"
)

// ItemState is the presence classification of a tracked item
type ItemState int

const (
	// New is an item seen for the first time this cycle
	New ItemState = iota
	// Monitoring is an item that has been seen on consecutive cycles
	Monitoring
	// Missing is an item absent from the current detections
	Missing
	// Evicted is terminal, the item has been removed from the live set
	Evicted
)

// DefaultMissThreshold is the number of misses an item may accumulate before
// it is evicted on the next absent cycle
const DefaultMissThreshold = 10

// String returns the state name used in logs and overlays
func (s ItemState) String() string {
	switch s {
	case New:
		return "new"
	case Monitoring:
		return "monitoring"
	case Missing:
		return "missing"
	case Evicted:
		return "evicted"
	}

	return "unknown"
}

// Item is a stable identity assigned to a detection lineage
type Item struct {
	// ID is the tracker identity, it never changes after creation
	ID int
	// State is the current lifecycle state
	State ItemState
	// Misses is the consecutive miss counter
	Misses int
	// FirstSeen and LastSeen are the cycle numbers the item was created
	// and last present on
	FirstSeen int
	LastSeen  int
}

// Transition records a single state change applied during a cycle
type Transition struct {
	ID int
	// From is the state before the cycle, it is left unset when Created
	From   ItemState
	To     ItemState
	Misses int
	// Created is set when the item did not exist before this cycle
	Created bool
}

// Report is the outcome of a single lifecycle cycle
type Report struct {
	// Cycle is the 1 based cycle number
	Cycle int
	// Transitions are the state changes applied in evaluation order
	Transitions []Transition
	// Evicted are the identities removed from the live set this cycle
	Evicted []int
}

// Lifecycle classifies each tracked identity as New, Monitoring or Missing
// and evicts identities that stay missing for longer than the threshold.
// A Lifecycle is owned by a single goroutine.
type Lifecycle struct {
	threshold int
	cycle     int
	items     map[int]*Item
	log       zerolog.Logger
}

// NewLifecycle returns a lifecycle that evicts an item once its miss counter
// exceeds threshold.  A negative threshold uses DefaultMissThreshold.
func NewLifecycle(threshold int, log zerolog.Logger) *Lifecycle {

	if threshold < 0 {
		threshold = DefaultMissThreshold
	}

	return &Lifecycle{
		threshold: threshold,
		items:     make(map[int]*Item),
		log:       log.With().Str("component", "lifecycle").Logger(),
	}
}

// Threshold returns the eviction threshold
func (l *Lifecycle) Threshold() int {
	return l.threshold
}

// Update applies one processing cycle for the identities seen in the current
// detections.  All seen transitions are applied before any unseen transition.
func (l *Lifecycle) Update(seen []int) Report {

	l.cycle++
	rep := Report{Cycle: l.cycle}

	present := make(map[int]struct{}, len(seen))

	// phase one, identities present this cycle in the order given
	for _, id := range seen {

		if _, dup := present[id]; dup {
			continue
		}

		present[id] = struct{}{}

		item, exists := l.items[id]

		if !exists {
			l.items[id] = &Item{
				ID:        id,
				State:     New,
				FirstSeen: l.cycle,
				LastSeen:  l.cycle,
			}

			rep.Transitions = append(rep.Transitions, l.logged(Transition{
				ID: id, To: New, Created: true,
			}))
			continue
		}

		from := item.State
		item.LastSeen = l.cycle

		switch item.State {
		case New:
			item.State = Monitoring

		case Missing:
			item.State = Monitoring

			if item.Misses > 0 {
				item.Misses--
			}

		case Monitoring:
			// steady state, nothing to record
			continue
		}

		rep.Transitions = append(rep.Transitions, l.logged(Transition{
			ID: id, From: from, To: item.State, Misses: item.Misses,
		}))
	}

	// phase two, every live identity not present this cycle.  Ids are
	// visited in ascending order so reports are deterministic.
	for _, id := range l.sortedIDs() {

		if _, ok := present[id]; ok {
			continue
		}

		item := l.items[id]
		from := item.State

		item.Misses++
		item.State = Missing

		if item.Misses > l.threshold {
			delete(l.items, id)
			rep.Evicted = append(rep.Evicted, id)

			rep.Transitions = append(rep.Transitions, l.logged(Transition{
				ID: id, From: from, To: Evicted, Misses: item.Misses,
			}))
			continue
		}

		rep.Transitions = append(rep.Transitions, l.logged(Transition{
			ID: id, From: from, To: Missing, Misses: item.Misses,
		}))
	}

	if len(rep.Evicted) > 0 {
		l.log.Info().Int("cycle", l.cycle).Ints("evicted", rep.Evicted).
			Msg("Items evicted")
	}

	return rep
}

// logged writes the transition to the debug log and returns it
func (l *Lifecycle) logged(t Transition) Transition {

	ev := l.log.Debug().Int("cycle", l.cycle).Int("id", t.ID).
		Int("misses", t.Misses)

	if t.Created {
		ev.Stringer("state", t.To).Msg("Item created")
		return t
	}

	ev.Stringer("from", t.From).Stringer("to", t.To).Msg("Item transition")
	return t
}

// Item returns a copy of the live item with the given id
func (l *Lifecycle) Item(id int) (Item, bool) {

	item, ok := l.items[id]

	if !ok {
		return Item{}, false
	}

	return *item, true
}

// Items returns copies of all live items ordered by id
func (l *Lifecycle) Items() []Item {

	res := make([]Item, 0, len(l.items))

	for _, id := range l.sortedIDs() {
		res = append(res, *l.items[id])
	}

	return res
}

// Len returns the number of live items
func (l *Lifecycle) Len() int {
	return len(l.items)
}

// Cycle returns the number of cycles applied since creation or last Reset
func (l *Lifecycle) Cycle() int {
	return l.cycle
}

// Reset discards every live item and the cycle counter
func (l *Lifecycle) Reset() {
	l.cycle = 0
	l.items = make(map[int]*Item)
	l.log.Debug().Msg("Lifecycle reset")
}

func (l *Lifecycle) sortedIDs() []int {

	ids := make([]int, 0, len(l.items))

	for id := range l.items {
		ids = append(ids, id)
	}

	sort.Ints(ids)
	return ids
}
