package ui

import (
	"conntree/internal/controller"
	"conntree/internal/services"
)

type sessionEventMsg struct {
	event services.SessionEvent
	ok    bool
}

// PuttyImportMsg carries a fresh PuTTY session list from the watcher.
type PuttyImportMsg struct {
	Result services.ImportResult
}

// ErrorMsg reports a background failure, such as a failed save.
type ErrorMsg struct {
	Source string
	Err    error
}

// changeLog is the controller's notifier. Events are recorded and drained by
// Update after each command, so the controller never blocks on the program.
type changeLog struct {
	events []controller.Event
}

func (log *changeLog) NodeChanged(event controller.Event) {
	log.events = append(log.events, event)
}

func (log *changeLog) drain() []controller.Event {
	events := log.events
	log.events = nil
	return events
}
