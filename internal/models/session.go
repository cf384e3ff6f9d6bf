package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewSessionID mints an analysis session id of the form
// "<purpose>_<unix-millis>_<8 hex>". Ids are never reused.
func NewSessionID(purpose string, now time.Time) string {
	purpose = strings.TrimSpace(strings.ToLower(purpose))
	purpose = strings.ReplaceAll(purpose, " ", "-")
	if purpose == "" {
		purpose = "analysis"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", purpose, now.UnixMilli(), suffix)
}

// Stage is a point in the per-session analysis state machine.
type Stage int

const (
	StageNotStarted Stage = iota
	StageProfilingDone
	StageCategoriesReady
	StageCompetitorsReady
	StagePromptsReady
	StageResponsesReady
	StageMentionsExtracted
	StageSOVCalculated
)

var stageNames = [...]string{
	"not_started",
	"profiling_done",
	"categories_ready",
	"competitors_ready",
	"prompts_ready",
	"responses_ready",
	"mentions_extracted",
	"sov_calculated",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Terminal reports whether no further stage follows.
func (s Stage) Terminal() bool {
	return s == StageSOVCalculated
}

// CanEnter reports whether a run currently at s may move to next. Moving one
// stage forward or re-entering any stage already reached is allowed;
// skipping ahead is not.
func (s Stage) CanEnter(next Stage) bool {
	if next < StageNotStarted || next > StageSOVCalculated {
		return false
	}
	return next <= s+1
}

// FailureKind classifies a recovered or fatal pipeline failure.
type FailureKind string

const (
	FailureUpstreamUnavailable FailureKind = "upstream_unavailable"
	FailureMalformedReply      FailureKind = "malformed_reply"
	FailurePartialStage        FailureKind = "partial_stage_failure"
	FailureValidation          FailureKind = "validation_failure"
	FailureFatalPrerequisite   FailureKind = "fatal_prerequisite_missing"
)

// StageFailure is one entry in a run's failure log. Only
// FailureFatalPrerequisite aborts a run.
type StageFailure struct {
	Stage   string      `json:"stage"`
	Kind    FailureKind `json:"kind"`
	Item    string      `json:"item,omitempty"`
	Message string      `json:"message"`
	At      time.Time   `json:"at"`
}
