package sync

import "context"

// MessageRef is an opaque reference to a message within the mailbox
// session that produced it. Refs are only valid for the run in which
// they were listed and are never persisted.
type MessageRef struct {
	// UID is the server-assigned message identifier.
	UID uint32

	// Subject is the decoded message subject, for reporting.
	Subject string

	// From is the sender display name or address, for reporting.
	From string
}

// Attachment is a single PDF attachment extracted from a message.
type Attachment struct {
	// Filename is the declared attachment filename.
	Filename string

	// Data is the decoded attachment content.
	Data []byte
}

// FolderRef identifies a destination folder in the document store.
// It is resolved once per run and remains valid for that run.
type FolderRef struct {
	// ID is the remote folder identifier.
	ID string

	// Name is the folder's visible name.
	Name string
}

// UploadReceipt describes a document created by a successful upload.
type UploadReceipt struct {
	// DocumentID is the remote identifier of the new document.
	DocumentID string

	// Name is the visible name the document was stored under.
	Name string
}

// Mailbox defines the mail-side contract the syncer drives. One
// implementation session serves exactly one run.
type Mailbox interface {
	// Connect establishes and authenticates the mail session.
	Connect(ctx context.Context) error

	// ListUnread returns refs for every unread message in the named
	// mailbox, in server order.
	ListUnread(ctx context.Context, mailbox string) ([]MessageRef, error)

	// FetchPDFAttachments returns the PDF attachments of a message.
	// A message without PDF attachments yields an empty slice and no
	// error. Fetching never changes the message's read state.
	FetchPDFAttachments(ctx context.Context, ref MessageRef) ([]Attachment, error)

	// MarkRead flags a message as read. It is idempotent.
	MarkRead(ctx context.Context, ref MessageRef) error

	// Close ends the mail session.
	Close() error
}

// DocumentStore defines the upload-side contract the syncer drives.
type DocumentStore interface {
	// Authenticate establishes the document store session.
	Authenticate(ctx context.Context) error

	// EnsureFolder returns a ref for the folder with the given name,
	// creating it when absent.
	EnsureFolder(ctx context.Context, name string) (FolderRef, error)

	// Upload stores the file at localPath as a document in the given
	// folder and returns a receipt for it.
	Upload(ctx context.Context, localPath string, folder FolderRef) (UploadReceipt, error)
}
