package email

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/shano/email-to-remarkable-sync/internal/sync"
)

// Client wraps go-imap v2 for a single mailbox session. Connect must
// be called before any other method; the session lives for exactly
// one run and ends with Close.
type Client struct {
	host     string
	port     string
	username string
	password string
	log      *zap.Logger

	client   *imapclient.Client
	selected string
}

// NewClient creates an unconnected IMAP client configuration.
func NewClient(
	host, port, username, password string, log *zap.Logger,
) *Client {
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		log:      log,
	}
}

// Connect dials the server over implicit TLS and authenticates.
func (c *Client) Connect(_ context.Context) error {
	addr := c.host + ":" + c.port

	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return &sync.ConnectionError{
			Service: sync.ServiceIMAP,
			Addr:    addr,
			Err:     err,
		}
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return &sync.AuthError{
			Service: sync.ServiceIMAP,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	c.client = client
	c.log.Info("imap session opened",
		zap.String("addr", addr),
		zap.String("username", c.username),
	)
	return nil
}

// Close logs out and ends the session.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Logout().Wait()
	c.client = nil
	c.selected = ""
	return err
}

// ListUnread selects the mailbox and returns a ref for every message
// without the \Seen flag, in the order the server returned them.
func (c *Client) ListUnread(
	_ context.Context, mailbox string,
) ([]sync.MessageRef, error) {
	if err := c.selectMailbox(mailbox); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := c.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unread messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSetNum(uids...)

	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	}

	fetchCmd := c.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	byUID := make(map[imap.UID]sync.MessageRef, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			c.log.Warn("skipping message with unreadable envelope",
				zap.Error(err),
			)
			continue
		}

		byUID[buf.UID] = refFromBuffer(buf)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching envelopes: %w", err)
	}

	return alignRefs(uids, byUID), nil
}

// alignRefs orders fetched refs by the search result. Fetch responses
// may arrive in any order; the search result carries the server's
// order. UIDs the fetch did not return are dropped.
func alignRefs(
	uids []imap.UID, byUID map[imap.UID]sync.MessageRef,
) []sync.MessageRef {
	refs := make([]sync.MessageRef, 0, len(uids))
	for _, uid := range uids {
		if ref, ok := byUID[uid]; ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// FetchPDFAttachments fetches the full message body without touching
// its flags and returns the decoded PDF attachments. Messages without
// PDF attachments yield an empty slice and no error.
func (c *Client) FetchPDFAttachments(
	_ context.Context, ref sync.MessageRef,
) ([]sync.Attachment, error) {
	uidSet := imap.UIDSetNum(imap.UID(ref.UID))

	// Peek so the fetch itself never sets \Seen.
	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := c.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, &sync.ExtractionError{
			Err: fmt.Errorf("message UID %d not found", ref.UID),
		}
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, &sync.ExtractionError{
			Err: fmt.Errorf("collecting message data: %w", err),
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("closing fetch: %w", err)
	}

	rawBody := buf.FindBodySection(bodySection)
	if rawBody == nil {
		return nil, &sync.ExtractionError{
			Err: fmt.Errorf("message UID %d returned no body", ref.UID),
		}
	}

	attachments, err := pdfAttachments(rawBody)
	if err != nil {
		return nil, err
	}

	c.log.Debug("message fetched",
		zap.Uint32("uid", ref.UID),
		zap.Int("pdf_attachments", len(attachments)),
	)
	return attachments, nil
}

// MarkRead adds the \Seen flag to a message. Adding a flag that is
// already present is a server-side no-op, so repeated calls are safe.
func (c *Client) MarkRead(_ context.Context, ref sync.MessageRef) error {
	uidSet := imap.UIDSetNum(imap.UID(ref.UID))

	storeCmd := c.client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("marking UID %d read: %w", ref.UID, err)
	}
	return nil
}

// selectMailbox issues SELECT unless the mailbox is already selected.
func (c *Client) selectMailbox(mailbox string) error {
	if c.selected == mailbox {
		return nil
	}

	if _, err := c.client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	c.selected = mailbox
	return nil
}

// refFromBuffer extracts a MessageRef from a FetchMessageBuffer.
func refFromBuffer(buf *imapclient.FetchMessageBuffer) sync.MessageRef {
	ref := sync.MessageRef{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		ref.Subject = decodeSubject(buf.Envelope.Subject)

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				ref.From = from.Name
			} else {
				ref.From = from.Addr()
			}
		}
	}

	return ref
}
