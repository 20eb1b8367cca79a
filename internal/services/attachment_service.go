package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/yargevad/filepathx"

	"promptdesk/internal/api"
	"promptdesk/internal/events"
	"promptdesk/internal/models"
)

// AttachmentService uploads local files against an active session id and
// mirrors the backend-assigned descriptors into local state.
type AttachmentService struct {
	api    *api.Client
	logger *slog.Logger

	mu        sync.RWMutex
	bySession map[string][]models.AttachedFile
}

func NewAttachmentService(apiClient *api.Client, logger *slog.Logger) *AttachmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttachmentService{
		api:       apiClient,
		logger:    logger,
		bySession: make(map[string][]models.AttachedFile),
	}
}

// ExpandPatterns turns glob patterns (including ** globs) into a sorted,
// de-duplicated list of concrete file paths. Directories are skipped.
func (s *AttachmentService) ExpandPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		matches, err := filepathx.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expand pattern %s: %w", pattern, err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if !seen[match] {
				seen[match] = true
				paths = append(paths, match)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Upload sends all files as one multipart batch. On success the returned
// descriptors are merged into the session's attachment list; per-file
// processing errors are reported without discarding the successful subset.
// On total failure no descriptors are added.
func (s *AttachmentService) Upload(ctx context.Context, sessionID string, paths []string) (*api.UploadResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}
	ctx = events.WithSession(ctx, sessionID)

	result, err := s.api.UploadFiles(ctx, sessionID, paths)
	if err != nil {
		s.logger.Error("file upload failed", "session_id", sessionID, "files", len(paths), "error", err)
		events.Emit(ctx, events.TopicNotice, events.NewError("Uploading files failed."))
		return nil, err
	}

	s.mu.Lock()
	for _, file := range result.Files {
		if file.Kind == "" || file.Kind == models.FileKindUnknown {
			file.Kind = models.KindForName(file.OriginalName)
		}
		s.bySession[sessionID] = upsertFile(s.bySession[sessionID], file)
	}
	s.mu.Unlock()

	for _, uploadErr := range result.Errors {
		events.Emit(ctx, events.TopicNotice, events.NewWarn(
			fmt.Sprintf("%s could not be processed: %s", uploadErr.FileName, uploadErr.Message)))
	}
	events.Emit(ctx, events.TopicAttachments, events.NewInfo("attachments updated"))
	return result, nil
}

// Remove detaches a file. Unlike a provider disconnect this is not
// optimistic: the descriptor stays until the backend confirms removal.
func (s *AttachmentService) Remove(ctx context.Context, sessionID, fileID string) error {
	ctx = events.WithSession(ctx, sessionID)
	if err := s.api.RemoveFile(ctx, sessionID, fileID); err != nil {
		s.logger.Error("file removal failed", "session_id", sessionID, "file_id", fileID, "error", err)
		events.Emit(ctx, events.TopicNotice, events.NewError("Removing the file failed."))
		return err
	}

	s.mu.Lock()
	files := s.bySession[sessionID]
	for i := range files {
		if files[i].ID == fileID {
			s.bySession[sessionID] = append(files[:i:i], files[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	events.Emit(ctx, events.TopicAttachments, events.NewInfo("attachments updated"))
	return nil
}

// List returns the attachments known for one session.
func (s *AttachmentService) List(sessionID string) []models.AttachedFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AttachedFile(nil), s.bySession[sessionID]...)
}

// ClearSession drops local attachment state when a session ends.
func (s *AttachmentService) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bySession, sessionID)
}

func upsertFile(files []models.AttachedFile, file models.AttachedFile) []models.AttachedFile {
	for i := range files {
		if files[i].ID == file.ID {
			files[i] = file
			return files
		}
	}
	return append(files, file)
}
