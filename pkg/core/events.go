package core

import "time"

// EventKind tags a territory or progression notification.
type EventKind string

const (
	EventPointCaptured   EventKind = "point_captured"
	EventPointDefended   EventKind = "point_defended"
	EventZoneCaptured    EventKind = "zone_captured"
	EventZoneLost        EventKind = "zone_lost"
	EventRouteBonus      EventKind = "route_bonus"
	EventPerkActivated   EventKind = "perk_activated"
	EventPerkExpired     EventKind = "perk_expired"
	EventZonesGenerated  EventKind = "zones_generated"
	EventRoutesGenerated EventKind = "routes_generated"
)

// Event is emitted after a state change. Fields that do not apply to a kind are zero.
type Event struct {
	Kind     EventKind
	Time     time.Time
	Team     TeamID
	Previous TeamID
	Point    PointID
	Zone     ZoneID
	Route    RouteID
	Perk     string
	Value    float64
	Count    int
}

// EventSink receives engine events. Implementations must not block for long.
type EventSink interface {
	Publish(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Publish(e Event) { f(e) }

// Sinks fans an event out to several sinks in order.
type Sinks []EventSink

func (s Sinks) Publish(e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Publish(e)
		}
	}
}

// DiscardEvents drops every event.
var DiscardEvents EventSink = EventSinkFunc(func(Event) {})
