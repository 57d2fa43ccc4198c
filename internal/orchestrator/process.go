package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	inboxDirName = "inbox"
	doneDirName  = "done"
	rejectDirName = "rejected"
)

// ProcessedFile records the outcome for one inbox file.
type ProcessedFile struct {
	FileName string `json:"file_name"`
	Actor    string `json:"actor"`
	TaskID   string `json:"task_id"`
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// ProcessResult is the JSON-serializable outcome of draining the inbox.
type ProcessResult struct {
	Files  []ProcessedFile `json:"files"`
	DryRun bool            `json:"dry_run"`
}

// Process scans .roadmap/inbox/*.json in name order and Submits each one
// (spec §4.5, S8). A file name of the form actor__task_id.json supplies
// the actor explicitly; a bare task_id.json defaults to "agent-external".
// On success the file moves to inbox/done/, on failure to
// inbox/rejected/. A dry run validates without moving files or persisting
// events.
func (s *Service) Process(dryRun bool) (ProcessResult, error) {
	inboxDir := filepath.Join(s.Root, inboxDirName)
	entries, err := os.ReadDir(inboxDir)
	if os.IsNotExist(err) {
		return ProcessResult{DryRun: dryRun}, nil
	}
	if err != nil {
		return ProcessResult{}, fmt.Errorf("orchestrator: read inbox %s: %w", inboxDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	result := ProcessResult{DryRun: dryRun}
	for _, name := range names {
		actor := inboxActor(name)
		path := filepath.Join(inboxDir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			result.Files = append(result.Files, ProcessedFile{FileName: name, Actor: actor, Accepted: false, Error: err.Error()})
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			result.Files = append(result.Files, ProcessedFile{FileName: name, Actor: actor, Accepted: false, Error: err.Error()})
			s.moveInboxFile(path, inboxDir, rejectDirName, name, dryRun)
			continue
		}

		submitResult, err := s.Submit(raw, actor, dryRun)
		if err != nil {
			result.Files = append(result.Files, ProcessedFile{FileName: name, Actor: actor, TaskID: taskIDFromRaw(raw), Accepted: false, Error: err.Error()})
			s.moveInboxFile(path, inboxDir, rejectDirName, name, dryRun)
			continue
		}

		result.Files = append(result.Files, ProcessedFile{FileName: name, Actor: actor, TaskID: submitResult.TaskID, Accepted: true})
		s.moveInboxFile(path, inboxDir, doneDirName, name, dryRun)
	}

	return result, nil
}

// inboxActor parses actor__task_id.json into its actor component, or
// returns the default "agent-external" for a bare task_id.json.
func inboxActor(fileName string) string {
	base := strings.TrimSuffix(fileName, ".json")
	if idx := strings.Index(base, "__"); idx >= 0 {
		return base[:idx]
	}
	return "agent-external"
}

func (s *Service) moveInboxFile(path, inboxDir, destSubdir, name string, dryRun bool) {
	if dryRun {
		return
	}
	destDir := filepath.Join(inboxDir, destSubdir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		s.Log.Warn("process: failed to create inbox destination directory", "dir", destDir, "error", err)
		return
	}
	if err := os.Rename(path, filepath.Join(destDir, name)); err != nil {
		s.Log.Warn("process: failed to move inbox file", "file", name, "error", err)
	}
}
