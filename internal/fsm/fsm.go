// Package fsm holds the pure transition tables for capture and extraction state.
package fsm

import (
	"errors"
	"fmt"
)

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

const (
	EventStart Event = "start"
	EventStop  Event = "stop"
)

type ExtractionState string

type ExtractionEvent string

const (
	ExtractionIdle     ExtractionState = "idle"
	ExtractionInFlight ExtractionState = "in_flight"
)

const (
	EventSubmit ExtractionEvent = "submit"
	EventSettle ExtractionEvent = "settle"
)

// ErrBusy is returned when a second extraction is submitted while one is in flight.
var ErrBusy = errors.New("extraction already in flight")

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(string(current), string(event))
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateIdle, nil
		default:
			return current, invalidTransition(string(current), string(event))
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func TransitionExtraction(current ExtractionState, event ExtractionEvent) (ExtractionState, error) {
	switch current {
	case ExtractionIdle:
		switch event {
		case EventSubmit:
			return ExtractionInFlight, nil
		default:
			return current, invalidTransition(string(current), string(event))
		}
	case ExtractionInFlight:
		switch event {
		case EventSettle:
			return ExtractionIdle, nil
		case EventSubmit:
			return current, ErrBusy
		default:
			return current, invalidTransition(string(current), string(event))
		}
	default:
		return current, fmt.Errorf("unknown extraction state %q", current)
	}
}

func invalidTransition(state string, event string) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
