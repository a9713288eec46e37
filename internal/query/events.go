package query

import "time"

// Endpoint names reported in call events.
const (
	EndpointSearch      = "findByIngredients"
	EndpointInformation = "information"
	EndpointBulk        = "informationBulk"
	EndpointRandom      = "random"
)

// CallEvent describes one lookup served either from the cache or the API.
type CallEvent struct {
	ID       string
	Endpoint string
	Key      string
	Cached   bool
	Latency  time.Duration
	Err      error
	At       time.Time
}

// Observer is notified of every cache hit and upstream call.
type Observer interface {
	ObserveCall(CallEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(CallEvent)

func (f ObserverFunc) ObserveCall(e CallEvent) { f(e) }
