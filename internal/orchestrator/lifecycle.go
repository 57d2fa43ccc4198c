package orchestrator

import (
	"strconv"

	"github.com/antigravity-dev/roadmap/internal/model"
	"github.com/antigravity-dev/roadmap/internal/projector"
)

// ProjectResult summarises a rebuild-and-write of the three views.
type ProjectResult struct {
	TaskCount   int `json:"task_count"`
	IssueCount  int `json:"issue_count"`
	LessonCount int `json:"lesson_count"`
	LastEventSeq int `json:"last_event_seq"`
}

// Project rebuilds roadmap/issues/lessons from the log and writes them
// (spec §4.5).
func (s *Service) Project() (ProjectResult, error) {
	events, err := s.Store.Parse()
	if err != nil {
		return ProjectResult{}, err
	}
	roadmap, issues, lessons, err := projector.Materialize(events, s.Project)
	if err != nil {
		return ProjectResult{}, err
	}
	if err := s.writeViews(roadmap, issues, lessons); err != nil {
		return ProjectResult{}, err
	}
	return ProjectResult{
		TaskCount:    len(roadmap.Tasks),
		IssueCount:   len(issues.Issues),
		LessonCount:  len(lessons.Lessons),
		LastEventSeq: roadmap.Meta.Run.LastEventSeq,
	}, nil
}

// VerifyResult reports the outcome of comparing a fresh materialisation
// against the stored roadmap.json (spec §4.5).
type VerifyResult struct {
	VerifyStatus         string `json:"verify_status"`
	LastEventSeq         int    `json:"last_event_seq"`
	ProjectionHashSHA256 string `json:"projection_hash_sha256"`
}

// Verify re-materialises from the log and compares (last_event_seq,
// projection_hash_sha256) against the stored roadmap.json. A log that
// fails to parse or to re-materialise yields "corrupted"; anything else
// that doesn't match yields "mismatch" (including a missing or malformed
// roadmap.json, since the view is a derived cache, not part of the log's
// own corruption class). Any other error reading roadmap.json is returned.
func (s *Service) Verify() (VerifyResult, error) {
	events, err := s.Store.Parse()
	if err != nil {
		return VerifyResult{VerifyStatus: model.VerifyStatusCorrupted}, nil
	}

	roadmap, _, _, err := projector.Materialize(events, s.Project)
	if err != nil {
		return VerifyResult{VerifyStatus: model.VerifyStatusCorrupted}, nil
	}

	stored, ok, err := s.readStoredRoadmap()
	if err != nil {
		return VerifyResult{}, err
	}
	if !ok {
		return VerifyResult{
			VerifyStatus:         model.VerifyStatusMismatch,
			LastEventSeq:         roadmap.Meta.Run.LastEventSeq,
			ProjectionHashSHA256: roadmap.Meta.Run.ProjectionHashSHA256,
		}, nil
	}

	status := model.VerifyStatusOK
	if stored.Meta.Run.LastEventSeq != roadmap.Meta.Run.LastEventSeq ||
		stored.Meta.Run.ProjectionHashSHA256 != roadmap.Meta.Run.ProjectionHashSHA256 {
		status = model.VerifyStatusMismatch
	}

	return VerifyResult{
		VerifyStatus:         status,
		LastEventSeq:         roadmap.Meta.Run.LastEventSeq,
		ProjectionHashSHA256: roadmap.Meta.Run.ProjectionHashSHA256,
	}, nil
}

// ReplayResult summarises a bounded replay.
type ReplayResult struct {
	UntilEventSeq int  `json:"until_event_seq"`
	TaskCount     int  `json:"task_count"`
	IssueCount    int  `json:"issue_count"`
	LessonCount   int  `json:"lesson_count"`
	ViewsWritten  bool `json:"views_written"`
}

// Replay materialises a prefix of the log truncated at a numeric
// event_seq (if until is all digits) or at the first event whose
// event_id matches until, inclusive (spec §4.5). Views are written unless
// writeViews is false.
func (s *Service) Replay(until string, writeViews bool) (ReplayResult, error) {
	events, err := s.Store.Parse()
	if err != nil {
		return ReplayResult{}, err
	}

	prefix, err := truncateAt(events, until)
	if err != nil {
		return ReplayResult{}, err
	}

	roadmap, issues, lessons, err := projector.Materialize(prefix, s.Project)
	if err != nil {
		return ReplayResult{}, err
	}

	written := false
	if writeViews {
		if err := s.writeViews(roadmap, issues, lessons); err != nil {
			return ReplayResult{}, err
		}
		written = true
	}

	return ReplayResult{
		UntilEventSeq: roadmap.Meta.Run.LastEventSeq,
		TaskCount:     len(roadmap.Tasks),
		IssueCount:    len(issues.Issues),
		LessonCount:   len(lessons.Lessons),
		ViewsWritten:  written,
	}, nil
}

func truncateAt(events []model.Event, until string) ([]model.Event, error) {
	if until == "" {
		return events, nil
	}
	if seq, err := strconv.Atoi(until); err == nil && isAllDigits(until) {
		for i, evt := range events {
			if evt.EventSeq == seq {
				return events[:i+1], nil
			}
		}
		return nil, model.NewError(model.CodeInvalidArgument, "no event with event_seq %d", seq)
	}
	for i, evt := range events {
		if evt.EventID == until {
			return events[:i+1], nil
		}
	}
	return nil, model.NewError(model.CodeInvalidArgument, "no event with event_id %q", until)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
