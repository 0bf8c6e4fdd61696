package run

import (
	"fmt"
	"time"
)

// Phase is the position of a run in its lifecycle.
type Phase int

const (
	Idle Phase = iota
	Uploading
	Generating
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Generating:
		return "generating"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Progress markers. They are fixed checkpoints, not a measure of bytes sent.
const (
	ProgressUploaded = 30
	ProgressComplete = 100
)

// State is the single record through which a run is observed.
// OutputArtifact is empty when the run produced no file.
type State struct {
	RunID          string
	Phase          Phase
	Progress       int
	SuccessCount   int
	FailureCount   int
	OutputArtifact string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Terminal reports whether the run has finished, successfully or not.
func (s State) Terminal() bool {
	return s.Phase == Done || s.Phase == Failed
}

func (s State) String() string {
	artifact := s.OutputArtifact
	if artifact == "" {
		artifact = "none"
	}
	return fmt.Sprintf("phase=%s progress=%d%% success=%d failed=%d artifact=%s",
		s.Phase, s.Progress, s.SuccessCount, s.FailureCount, artifact)
}

// UploadedRef pairs the name the server stored an image under with the
// name the user selected it as.
type UploadedRef struct {
	ServedName   string
	OriginalName string
}

// NoticeKind classifies a user-facing notice.
type NoticeKind int

const (
	NoticeRejected NoticeKind = iota
	NoticeFailed
	NoticeSuccess
	NoticeWarning
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeRejected:
		return "rejected"
	case NoticeFailed:
		return "failed"
	case NoticeSuccess:
		return "success"
	case NoticeWarning:
		return "warning"
	default:
		return fmt.Sprintf("notice(%d)", int(k))
	}
}

// Notice is a structured message for the presentation layer to render.
// Reason is set only for rejections.
type Notice struct {
	Kind    NoticeKind
	Reason  Reason
	Message string
}
