package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Options configures a single sync run.
type Options struct {
	// Mailbox is the mailbox scanned for unread messages.
	Mailbox string

	// FolderName is the destination folder in the document store.
	FolderName string

	// StagingDir is the directory under which attachments are staged
	// before upload. Staged files are removed before Run returns.
	StagingDir string
}

// Syncer moves PDF attachments from unread mail into the document
// store in a single batch pass. Messages are processed sequentially
// and in isolation: one message's failure never stops the batch.
type Syncer struct {
	mailbox Mailbox
	store   DocumentStore
	opts    Options
	log     *zap.Logger
}

// New creates a Syncer over the given adapters.
func New(mailbox Mailbox, store DocumentStore, opts Options, log *zap.Logger) *Syncer {
	return &Syncer{
		mailbox: mailbox,
		store:   store,
		opts:    opts,
		log:     log,
	}
}

// Run executes one batch pass and returns the per-message report.
// The error return is non-nil only for fatal setup failures
// (connecting, authenticating, resolving the destination folder,
// listing the mailbox, or creating the staging directory); per-message
// failures are recorded in the report instead.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	if err := s.mailbox.Connect(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = s.mailbox.Close() }()

	if err := s.store.Authenticate(ctx); err != nil {
		return nil, err
	}

	folder, err := s.store.EnsureFolder(ctx, s.opts.FolderName)
	if err != nil {
		return nil, fmt.Errorf("ensuring folder %q: %w", s.opts.FolderName, err)
	}

	refs, err := s.mailbox.ListUnread(ctx, s.opts.Mailbox)
	if err != nil {
		return nil, fmt.Errorf("listing unread messages: %w", err)
	}

	s.log.Info("mailbox scanned",
		zap.String("mailbox", s.opts.Mailbox),
		zap.Int("unread", len(refs)),
	)

	report := &Report{}
	if len(refs) == 0 {
		return report, nil
	}

	if err := os.MkdirAll(s.opts.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging root %s: %w", s.opts.StagingDir, err)
	}
	staging, err := os.MkdirTemp(s.opts.StagingDir, "run-")
	if err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	for _, ref := range refs {
		result := s.processMessage(ctx, ref, folder, staging)
		report.Results = append(report.Results, result)
		s.logResult(result)
	}

	return report, nil
}

// processMessage handles one message in isolation. Every failure is
// folded into the returned result; a message is marked read only when
// all of its attachments uploaded.
func (s *Syncer) processMessage(
	ctx context.Context,
	ref MessageRef,
	folder FolderRef,
	stagingRoot string,
) MessageResult {
	result := MessageResult{Ref: ref}

	attachments, err := s.mailbox.FetchPDFAttachments(ctx, ref)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result
	}

	if len(attachments) == 0 {
		// No PDFs: leave the message unread so nothing is lost if
		// another consumer cares about it.
		result.Status = StatusSkipped
		return result
	}

	msgDir, err := os.MkdirTemp(stagingRoot, fmt.Sprintf("msg-%d-", ref.UID))
	if err != nil {
		result.Status = StatusFailed
		result.Err = fmt.Errorf("creating message staging dir: %w", err)
		return result
	}
	defer func() { _ = os.RemoveAll(msgDir) }()

	// Attempt every attachment even after one fails, so the result
	// names each failing attachment. Uploads that succeeded are kept.
	allUploaded := true
	for _, att := range attachments {
		ar := s.uploadAttachment(ctx, att, msgDir, folder)
		if ar.Err != nil {
			allUploaded = false
		}
		result.Attachments = append(result.Attachments, ar)
	}

	if !allUploaded {
		result.Status = StatusFailed
		return result
	}

	result.Status = StatusSucceeded
	if err := s.mailbox.MarkRead(ctx, ref); err != nil {
		// The uploads are durable; failing to flip the flag must not
		// report them as lost. Recorded and logged, nothing more.
		result.MarkReadErr = err
	}
	return result
}

// uploadAttachment stages one attachment to disk, uploads it, and
// removes the staged file whether or not the upload succeeded.
func (s *Syncer) uploadAttachment(
	ctx context.Context,
	att Attachment,
	dir string,
	folder FolderRef,
) AttachmentResult {
	ar := AttachmentResult{Filename: att.Filename}

	path := filepath.Join(dir, stagedName(att.Filename))
	if err := os.WriteFile(path, att.Data, 0o600); err != nil {
		ar.Err = fmt.Errorf("staging %s: %w", att.Filename, err)
		return ar
	}
	defer func() { _ = os.Remove(path) }()

	receipt, err := s.store.Upload(ctx, path, folder)
	if err != nil {
		ar.Err = err
		return ar
	}

	ar.DocumentID = receipt.DocumentID
	return ar
}

// logResult emits the one-line outcome summary for a processed message.
func (s *Syncer) logResult(res MessageResult) {
	fields := []zap.Field{
		zap.Uint32("uid", res.Ref.UID),
		zap.String("subject", res.Ref.Subject),
		zap.String("from", res.Ref.From),
	}

	switch res.Status {
	case StatusSkipped:
		s.log.Info("message skipped, no pdf attachments", fields...)
	case StatusSucceeded:
		fields = append(fields, zap.Int("uploaded", res.Uploaded()))
		if res.MarkReadErr != nil {
			s.log.Warn("uploads succeeded but message could not be marked read",
				append(fields, zap.Error(res.MarkReadErr))...)
			return
		}
		s.log.Info("message processed", fields...)
	case StatusFailed:
		if res.Err != nil {
			s.log.Error("message failed", append(fields, zap.Error(res.Err))...)
			return
		}
		s.log.Error("message failed, left unread",
			append(fields,
				zap.Int("uploaded", res.Uploaded()),
				zap.Int("failed", res.FailedUploads()),
				zap.String("cause", firstUploadError(res)),
			)...)
	}
}

// firstUploadError returns the first attachment failure message, for
// the summary line.
func firstUploadError(res MessageResult) string {
	for _, a := range res.Attachments {
		if a.Err != nil {
			return a.Err.Error()
		}
	}
	return ""
}

// stagedName reduces a declared attachment filename to a safe local
// file name, guarding against path separators and empty names.
func stagedName(filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "attachment.pdf"
	}
	return name
}
