package sync

// MessageStatus classifies the outcome of processing a single message.
type MessageStatus string

const (
	// StatusSucceeded means every attachment uploaded and the message
	// was eligible to be marked read.
	StatusSucceeded MessageStatus = "succeeded"

	// StatusSkipped means the message had no PDF attachments and was
	// left untouched.
	StatusSkipped MessageStatus = "skipped"

	// StatusFailed means extraction failed or at least one attachment
	// did not upload; the message was left unread.
	StatusFailed MessageStatus = "failed"
)

// AttachmentResult records the outcome of one attachment upload attempt.
type AttachmentResult struct {
	// Filename is the declared attachment filename.
	Filename string

	// DocumentID is the remote document id, set on success.
	DocumentID string

	// Err is the upload or staging failure, set on failure.
	Err error
}

// MessageResult records the outcome of processing one message.
type MessageResult struct {
	// Ref identifies the message.
	Ref MessageRef

	// Status is the overall outcome for the message.
	Status MessageStatus

	// Attachments holds one entry per attachment attempt, in order.
	Attachments []AttachmentResult

	// Err is the message-level failure cause, set when the message
	// failed before any attachment was attempted.
	Err error

	// MarkReadErr records a failure to mark the message read after
	// all uploads succeeded. It never changes Status.
	MarkReadErr error
}

// Uploaded returns how many of the message's attachments uploaded.
func (r MessageResult) Uploaded() int {
	n := 0
	for _, a := range r.Attachments {
		if a.Err == nil {
			n++
		}
	}
	return n
}

// FailedUploads returns how many of the message's attachments failed.
func (r MessageResult) FailedUploads() int {
	return len(r.Attachments) - r.Uploaded()
}

// Report aggregates the per-message outcomes of one run.
type Report struct {
	// Results holds one entry per unread message, in mailbox order.
	Results []MessageResult
}

// Succeeded returns the number of fully processed messages.
func (r *Report) Succeeded() int { return r.count(StatusSucceeded) }

// Skipped returns the number of messages without PDF attachments.
func (r *Report) Skipped() int { return r.count(StatusSkipped) }

// Failed returns the number of messages that failed.
func (r *Report) Failed() int { return r.count(StatusFailed) }

// OK reports whether the run completed without any message failing.
// Skipped messages do not count as failures.
func (r *Report) OK() bool { return r.Failed() == 0 }

func (r *Report) count(status MessageStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}
