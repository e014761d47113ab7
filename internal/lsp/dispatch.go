package lsp

import "encoding/json"

// Event is the sum type of asynchronous occurrences an LspClient emits on
// its Events channel: server-pushed notifications plus lifecycle events
// the coordinator's fan-in select loop treats uniformly.
type Event struct {
	Server string // configured server name this event came from
	Kind    EventKind
	Diagnostics *PublishDiagnosticsParams
	ShowMessage *ShowMessageParams
	LogMessage  *LogMessageParams
	Progress    *ProgressEvent
	Exited      error // non-nil when Kind == EventServerExited
}

// EventKind distinguishes the populated field of an Event.
type EventKind int

const (
	EventDiagnostics EventKind = iota
	EventShowMessage
	EventLogMessage
	EventProgress
	EventServerExited
)

// ProgressEvent normalizes both the standard $/progress notification and
// the legacy window/progress notification some servers still emit into one
// shape the coordinator renders without caring which wire form arrived.
type ProgressEvent struct {
	Token      string
	Title      string
	Message    string
	Percentage int
	Done       bool
}

func parsePublishDiagnostics(raw json.RawMessage) (any, error) {
	var p PublishDiagnosticsParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func parseShowMessage(raw json.RawMessage) (any, error) {
	var p ShowMessageParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func parseLogMessage(raw json.RawMessage) (any, error) {
	var p LogMessageParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// parseStandardProgress decodes a $/progress notification, whose Value is
// itself a discriminated union on "kind": begin, report, or end.
func parseStandardProgress(raw json.RawMessage) (any, error) {
	var p ProgressParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	var kind struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(p.Value, &kind); err != nil {
		return nil, err
	}
	ev := &ProgressEvent{Token: string(p.Token)}
	switch kind.Kind {
	case "begin":
		var v WorkDoneProgressBegin
		if err := json.Unmarshal(p.Value, &v); err != nil {
			return nil, err
		}
		ev.Title, ev.Message, ev.Percentage = v.Title, v.Message, v.Percentage
	case "report":
		var v WorkDoneProgressReport
		if err := json.Unmarshal(p.Value, &v); err != nil {
			return nil, err
		}
		ev.Message, ev.Percentage = v.Message, v.Percentage
	case "end":
		var v WorkDoneProgressEnd
		if err := json.Unmarshal(p.Value, &v); err != nil {
			return nil, err
		}
		ev.Message, ev.Done = v.Message, true
	}
	return ev, nil
}

func parseLegacyProgress(raw json.RawMessage) (any, error) {
	var p LegacyProgressParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &ProgressEvent{
		Token:      p.ID,
		Title:      p.Title,
		Message:    p.Message,
		Percentage: p.Percentage,
		Done:       p.Done,
	}, nil
}
