// Package projector folds an event sequence into the three authoritative
// views: the roadmap (tasks + run meta), the issues view, and the lessons
// view (spec §4.2). Materialize is a pure function — it never touches the
// filesystem and never mutates its input.
package projector

import (
	"fmt"
	"sort"

	"github.com/antigravity-dev/roadmap/internal/canon"
	"github.com/antigravity-dev/roadmap/internal/model"
)

// DefaultProject is used when Materialize is called with an empty project
// name, before any run.start event has supplied one.
const DefaultProject = "roadmap"

// state accumulates fold results as events are applied, in the same
// "accumulate into a report as you go" shape the teacher's analysis pass
// uses to build up a report incrementally.
type state struct {
	project    string
	tasks      []model.Task
	taskIndex  map[string]int
	issues     []model.Issue
	issueIndex map[string]int
	lessons    []model.Lesson
	run        model.RunMeta
	updatedAt  string
}

func newState(projectName string) *state {
	if projectName == "" {
		projectName = DefaultProject
	}
	return &state{
		project:    projectName,
		taskIndex:  make(map[string]int),
		issueIndex: make(map[string]int),
		run:        model.RunMeta{Status: model.RunStatusInitialized, VerifyStatus: model.VerifyStatusUnknown},
	}
}

// Materialize folds events into the roadmap, issues, and lessons views
// (spec §4.2). It returns a *model.DomainError for any invariant violation
// encountered while applying an event.
func Materialize(events []model.Event, projectName string) (model.Roadmap, model.IssuesView, model.LessonsView, error) {
	st := newState(projectName)

	for _, evt := range events {
		if err := st.apply(evt); err != nil {
			return model.Roadmap{}, model.IssuesView{}, model.LessonsView{}, err
		}
		st.run.LastEventSeq = evt.EventSeq
		st.updatedAt = evt.TS
	}

	roadmap, err := st.buildRoadmap()
	if err != nil {
		return model.Roadmap{}, model.IssuesView{}, model.LessonsView{}, err
	}
	return roadmap, st.buildIssuesView(), st.buildLessonsView(), nil
}

func (s *state) apply(evt model.Event) error {
	switch evt.Action {
	case model.ActionRunStart:
		return s.applyRunStart(evt)
	case model.ActionRunEnd:
		return s.applyRunEnd(evt)
	case model.ActionTaskCreate:
		return s.applyTaskCreate(evt)
	case model.ActionClaim:
		return s.applyClaim(evt)
	case model.ActionComplete:
		return s.applyComplete(evt)
	case model.ActionReview:
		return s.applyReview(evt)
	case model.ActionIssueReport:
		return s.applyIssueReport(evt)
	case model.ActionHotfixCreate:
		return s.applyHotfixCreate(evt)
	case model.ActionIssueResolve:
		return s.applyIssueResolve(evt)
	case model.ActionVerifyOK:
		s.run.VerifyStatus = model.VerifyStatusOK
		return nil
	case model.ActionVerifyFail:
		vs := evt.PayloadString("verify_status")
		if vs == "" {
			vs = model.VerifyStatusMismatch
		}
		s.run.VerifyStatus = model.NormalizeVerifyStatus(vs)
		return nil
	case model.ActionOutputRejected, model.ActionFileWrite, model.ActionViewMutate, model.ActionVerifyStart:
		return nil
	default:
		return model.NewError(model.CodeUnknownAction, "unrecognized action %q at event_seq %d", evt.Action, evt.EventSeq)
	}
}

func (s *state) applyRunStart(evt model.Event) error {
	if v := evt.PayloadString("run_id"); v != "" {
		s.run.RunID = v
	}
	if v := evt.PayloadString("master_correlation_id"); v != "" {
		s.run.MasterCorrelationID = v
	}
	status := evt.PayloadString("status")
	if status == "" {
		status = model.RunStatusInitialized
	}
	s.run.Status = status
	return nil
}

func (s *state) applyRunEnd(evt model.Event) error {
	status := evt.PayloadString("status")
	if status == "" {
		status = model.RunStatusSuccess
	}
	s.run.Status = status
	return nil
}

func (s *state) applyTaskCreate(evt model.Event) error {
	taskID := evt.PayloadString("task_id")
	if taskID == "" {
		return model.NewError(model.CodeEventMissingFields, "task.create at event_seq %d missing task_id", evt.EventSeq)
	}
	if _, exists := s.taskIndex[taskID]; exists {
		return model.NewError(model.CodeDuplicateTask, "task_id %q already exists", taskID)
	}

	task := taskFromPayload(evt.Payload, taskID)
	task.Status = model.TaskStatusTodo

	s.taskIndex[taskID] = len(s.tasks)
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *state) applyClaim(evt model.Event) error {
	idx, task, err := s.findTask(evt.PayloadString("task_id"))
	if err != nil {
		return err
	}
	if task.Status == model.TaskStatusDone {
		return model.NewError(model.CodeImmutableDone, "task %q is done, cannot claim", task.TaskID)
	}
	if task.Status != model.TaskStatusTodo {
		return model.NewError(model.CodeLockedTask, "task %q is already locked (status %q)", task.TaskID, task.Status)
	}
	task.Status = model.TaskStatusInProgress
	task.AssignedTo = evt.Actor
	task.StartedAt = evt.TS
	s.tasks[idx] = task
	return nil
}

func (s *state) applyComplete(evt model.Event) error {
	idx, task, err := s.findTask(evt.PayloadString("task_id"))
	if err != nil {
		return err
	}
	if task.Status == model.TaskStatusDone {
		return model.NewError(model.CodeImmutableDone, "task %q is done, cannot complete", task.TaskID)
	}
	if task.Status != model.TaskStatusInProgress {
		return model.NewError(model.CodeInvalidTransition, "complete requires in_progress, task %q is %q", task.TaskID, task.Status)
	}
	if evt.Actor != task.AssignedTo {
		return model.NewError(model.CodeNotLockOwner, "actor %q is not the owner of task %q", evt.Actor, task.TaskID)
	}
	task.Status = model.TaskStatusReview
	if v := evt.PayloadMap("verification"); v != nil {
		task.Verification = &model.Verification{Checks: model.MapStringSlice(v, "checks")}
	}
	if issueID := evt.PayloadString("issue_id"); issueID != "" {
		task.IssueID = issueID
	}
	if fixes := evt.PayloadStringSlice("fixes"); len(fixes) > 0 {
		task.Fixes = fixes
	}
	s.tasks[idx] = task
	return nil
}

func (s *state) applyReview(evt model.Event) error {
	idx, task, err := s.findTask(evt.PayloadString("task_id"))
	if err != nil {
		return err
	}
	if task.Status == model.TaskStatusDone {
		return model.NewError(model.CodeImmutableDone, "task %q is done, cannot review", task.TaskID)
	}
	if task.Status != model.TaskStatusReview {
		return model.NewError(model.CodeInvalidTransition, "review requires review status, task %q is %q", task.TaskID, task.Status)
	}
	if evt.Actor != task.AssignedTo {
		return model.NewError(model.CodeNotLockOwner, "actor %q is not the owner of task %q", evt.Actor, task.TaskID)
	}

	switch decision := evt.PayloadString("decision"); decision {
	case "approve":
		task.Status = model.TaskStatusDone
		task.CompletedAt = evt.TS
	case "request_changes":
		task.Status = model.TaskStatusInProgress
	default:
		return model.NewError(model.CodeInvalidTransition, "unknown review decision %q on task %q", decision, task.TaskID)
	}
	s.tasks[idx] = task
	return nil
}

func (s *state) applyIssueReport(evt model.Event) error {
	issueID := evt.PayloadString("issue_id")
	if issueID == "" {
		return model.NewError(model.CodeEventMissingFields, "issue.report at event_seq %d missing issue_id", evt.EventSeq)
	}

	idx, exists := s.issueIndex[issueID]
	var issue model.Issue
	if exists {
		issue = s.issues[idx]
	} else {
		issue = model.Issue{IssueID: issueID, Timeline: model.IssueTimeline{CreatedEventSeq: evt.EventSeq}}
	}

	issue.Status = model.IssueStatusOpen
	if v := evt.PayloadString("severity"); v != "" {
		issue.Severity = v
	}
	if v := evt.PayloadString("title"); v != "" {
		issue.Title = v
	}
	if v := evt.PayloadMap("evidence"); v != nil {
		issue.Evidence = v
	}
	if v := evt.PayloadMap("affected"); v != nil {
		issue.Affected = v
		// baseline_id is nested under affected, not a top-level payload key.
		if b := model.MapString(v, "baseline_id"); b != "" {
			issue.BaselineID = b
		}
	}
	if v := evt.PayloadString("task_id"); v != "" {
		issue.Links.ReportedByTaskID = v
	}
	if fixes := evt.PayloadStringSlice("fixes"); len(fixes) > 0 {
		// fixes names the task(s) this issue blocks resolution of; the
		// first entry is recorded as the canonical fixes_task_id link.
		issue.Links.FixesTaskID = fixes[0]
	}

	if exists {
		s.issues[idx] = issue
	} else {
		s.issueIndex[issueID] = len(s.issues)
		s.issues = append(s.issues, issue)
	}

	if evt.PayloadString("category") == "process" && evt.PayloadString("subtype") == "lesson" {
		s.lessons = append(s.lessons, model.Lesson{
			LessonID:  fmt.Sprintf("LES-%04d", len(s.lessons)+1),
			Status:    model.LessonStatusActive,
			CreatedAt: evt.TS,
			Title:     evt.PayloadString("title"),
			Mistake:   evt.PayloadString("mistake"),
			Rule:      evt.PayloadString("rule"),
			Scope: model.LessonScope{
				TaskKinds: lessonScopeTaskKinds(evt),
			},
			Enforcement: model.LessonEnforcement{
				AppliesTo: lessonEnforcementAppliesTo(evt),
			},
			SourceRefs: model.LessonSourceRefs{
				TaskID:   evt.PayloadString("task_id"),
				EventSeq: evt.EventSeq,
			},
		})
	}
	return nil
}

func lessonScopeTaskKinds(evt model.Event) []string {
	if scope := evt.PayloadMap("scope"); scope != nil {
		return model.MapStringSlice(scope, "task_kinds")
	}
	return evt.PayloadStringSlice("task_kinds")
}

func lessonEnforcementAppliesTo(evt model.Event) []string {
	if enf := evt.PayloadMap("enforcement"); enf != nil {
		return model.MapStringSlice(enf, "applies_to")
	}
	return evt.PayloadStringSlice("applies_to")
}

func (s *state) applyHotfixCreate(evt model.Event) error {
	taskID := evt.PayloadString("task_id")
	if taskID == "" {
		return model.NewError(model.CodeEventMissingFields, "hotfix.create at event_seq %d missing task_id", evt.EventSeq)
	}
	if _, exists := s.taskIndex[taskID]; exists {
		return model.NewError(model.CodeDuplicateTask, "task_id %q already exists", taskID)
	}

	task := taskFromPayload(evt.Payload, taskID)
	task.Status = model.TaskStatusTodo
	task.IsHotfix = true
	if task.TaskKind == "" {
		task.TaskKind = model.TaskKindImpl
	}

	s.taskIndex[taskID] = len(s.tasks)
	s.tasks = append(s.tasks, task)

	if issueID := task.IssueID; issueID != "" {
		if idx, ok := s.issueIndex[issueID]; ok {
			s.issues[idx].Links.HotfixTaskID = taskID
		}
	}
	return nil
}

func (s *state) applyIssueResolve(evt model.Event) error {
	issueID := evt.PayloadString("issue_id")
	idx, ok := s.issueIndex[issueID]
	if !ok {
		return model.NewError(model.CodeIssueNotFound, "issue %q not found", issueID)
	}
	issue := s.issues[idx]
	issue.Status = model.IssueStatusResolved
	if res := evt.PayloadMap("resolution"); res != nil {
		issue.Resolution = res
	}
	issue.Timeline.ResolvedEventSeq = evt.EventSeq
	s.issues[idx] = issue
	return nil
}

func (s *state) findTask(taskID string) (int, model.Task, error) {
	idx, ok := s.taskIndex[taskID]
	if !ok {
		return 0, model.Task{}, model.NewError(model.CodeTaskNotFound, "task %q not found", taskID)
	}
	return idx, s.tasks[idx], nil
}

// taskFromPayload builds a Task from a task.create/hotfix.create payload.
// Description falls back to title when blank (spec §3).
func taskFromPayload(payload map[string]any, taskID string) model.Task {
	title := model.MapString(payload, "title")
	description := model.MapString(payload, "description")
	if description == "" {
		description = title
	}

	task := model.Task{
		TaskID:      taskID,
		TaskKind:    model.MapString(payload, "task_kind"),
		Title:       title,
		Description: description,
		DependsOn:   model.MapStringSlice(payload, "depends_on"),
		Targets:     model.MapStringSlice(payload, "targets"),
		IssueID:     model.MapString(payload, "issue_id"),
		Fixes:       model.MapStringSlice(payload, "fixes"),
		ScopePatch:  model.MapStringSlice(payload, "scope_patch"),
		BaselineID:  model.MapString(payload, "baseline_id"),
		IsHotfix:    model.MapBool(payload, "is_hotfix"),
	}
	task.Immutability.DoneIsImmutable = true
	if outputs := model.MapMap(payload, "outputs"); outputs != nil {
		task.Outputs.Files = model.MapStringSlice(outputs, "files")
	}
	task.RequiredVerification = model.MapStringSlice(payload, "required_verification")
	return task
}

func (s *state) buildRoadmap() (model.Roadmap, error) {
	tasks := make([]model.Task, len(s.tasks))
	for i, t := range s.tasks {
		tasks[i] = t.Clone()
	}

	indexes := buildTaskIndexes(tasks)

	hashed := model.HashedFields{
		SchemaVersion: model.CurrentSchemaVersion,
		Project:       s.project,
		Tasks:         tasks,
		Indexes:       indexes,
	}
	hash, err := canon.HashJSON(hashed)
	if err != nil {
		return model.Roadmap{}, fmt.Errorf("projector: hash roadmap: %w", err)
	}

	run := s.run
	run.ProjectionHashSHA256 = hash

	return model.Roadmap{
		SchemaVersion: model.CurrentSchemaVersion,
		Project:       s.project,
		Tasks:         tasks,
		Indexes:       indexes,
		Meta: model.Meta{
			Run:       run,
			UpdatedAt: s.updatedAt,
		},
	}, nil
}

func buildTaskIndexes(tasks []model.Task) model.Indexes {
	byStatus := make(map[string]int)
	byKind := make(map[string]int)
	for _, t := range tasks {
		byStatus[t.Status]++
		byKind[t.TaskKind]++
	}
	return model.Indexes{ByStatus: byStatus, ByKind: byKind}
}

func (s *state) buildIssuesView() model.IssuesView {
	issues := make([]model.Issue, len(s.issues))
	for i, iss := range s.issues {
		issues[i] = iss.Clone()
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].IssueID < issues[j].IssueID })

	openByBaseline := make(map[string][]string)
	for _, iss := range issues {
		if iss.Status != model.IssueStatusOpen {
			continue
		}
		baseline := iss.BaselineID
		if baseline == "" {
			baseline = "unknown"
		}
		openByBaseline[baseline] = append(openByBaseline[baseline], iss.IssueID)
	}
	for k := range openByBaseline {
		sort.Strings(openByBaseline[k])
	}

	return model.IssuesView{Issues: issues, OpenByBaseline: openByBaseline}
}

func (s *state) buildLessonsView() model.LessonsView {
	lessons := make([]model.Lesson, len(s.lessons))
	for i, l := range s.lessons {
		lessons[i] = l.Clone()
	}

	byTaskKind := make(map[string][]string)
	byEnforcement := make(map[string][]string)
	for _, l := range lessons {
		for _, kind := range l.Scope.TaskKinds {
			byTaskKind[kind] = append(byTaskKind[kind], l.LessonID)
		}
		for _, applies := range l.Enforcement.AppliesTo {
			byEnforcement[applies] = append(byEnforcement[applies], l.LessonID)
		}
	}
	for k := range byTaskKind {
		sort.Strings(byTaskKind[k])
	}
	for k := range byEnforcement {
		sort.Strings(byEnforcement[k])
	}

	return model.LessonsView{Lessons: lessons, ByTaskKind: byTaskKind, ByEnforcementApplies: byEnforcement}
}
