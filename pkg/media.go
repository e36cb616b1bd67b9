package pkg

import (
	"time"
)

// DateSource records which strategy produced a file's date.
type DateSource string

const (
	SourceNone     DateSource = ""
	SourceEXIF     DateSource = "EXIF"
	SourceFilename DateSource = "FILENAME"
	SourceFolder   DateSource = "FOLDER"
	SourceModTime  DateSource = "MODTIME"
	SourceFallback DateSource = "FALLBACK"
)

// DateSources lists every source that can resolve a date, in resolution order.
var DateSources = []DateSource{SourceEXIF, SourceFilename, SourceFolder, SourceModTime, SourceFallback}

// MediaFile is a candidate file and the date resolved for it.
type MediaFile struct {
	Path   string
	Date   time.Time
	Source DateSource
}

// HasDate reports whether a date was resolved for the file.
func (m MediaFile) HasDate() bool {
	return m.Source != SourceNone && !m.Date.IsZero()
}

// Action is what the placer did (or would do) with a file.
type Action string

const (
	ActionMoved   Action = "MOVED"
	ActionCopied  Action = "COPIED"
	ActionSkipped Action = "SKIPPED"
	ActionRenamed Action = "RENAMED_ON_COLLISION"
	ActionFailed  Action = "FAILED"
)

// Actions lists every action in report order.
var Actions = []Action{ActionMoved, ActionCopied, ActionRenamed, ActionSkipped, ActionFailed}

// PlacementResult describes the outcome for a single file. It is only used
// for reporting.
type PlacementResult struct {
	Source      string
	Destination string
	Action      Action
	Mode        Mode
	DateSource  DateSource
	Date        time.Time
	Size        int64
	DryRun      bool
	Reason      string
	Err         error
}

// Placed reports whether the file ended up (or would end up) at Destination.
func (r PlacementResult) Placed() bool {
	switch r.Action {
	case ActionMoved, ActionCopied, ActionRenamed:
		return true
	}
	return false
}
