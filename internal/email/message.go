package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/shano/email-to-remarkable-sync/internal/sync"
)

// decodeSubject decodes RFC 2047 encoded words in a subject header,
// falling back to the raw value when decoding fails.
func decodeSubject(raw string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// pdfAttachments parses a raw RFC 2822 message using go-message and
// returns every part declared as application/pdf that carries a
// filename, whether the sender disposed it as an attachment or
// inline. A message that cannot be parsed yields an ExtractionError.
func pdfAttachments(raw []byte) ([]sync.Attachment, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &sync.ExtractionError{
			Err: fmt.Errorf("parsing message: %w", err),
		}
	}
	defer mr.Close()

	var attachments []sync.Attachment
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &sync.ExtractionError{
				Err: fmt.Errorf("reading message part: %w", err),
			}
		}

		var header message.Header
		switch h := part.Header.(type) {
		case *mail.AttachmentHeader:
			header = h.Header
		case *mail.InlineHeader:
			header = h.Header
		default:
			continue
		}

		contentType, _, err := header.ContentType()
		if err != nil || !strings.EqualFold(contentType, "application/pdf") {
			continue
		}

		// Parts without a filename have nothing to be stored under.
		filename := partFilename(header)
		if filename == "" {
			continue
		}

		data, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			return nil, &sync.ExtractionError{
				Err: fmt.Errorf("decoding %s: %w", filename, readErr),
			}
		}

		attachments = append(attachments, sync.Attachment{
			Filename: filename,
			Data:     data,
		})
	}

	return attachments, nil
}

// partFilename returns the filename a part declares, preferring the
// Content-Disposition filename parameter and falling back to the
// Content-Type name parameter.
func partFilename(h message.Header) string {
	if _, params, err := h.ContentDisposition(); err == nil {
		if filename := params["filename"]; filename != "" {
			return filename
		}
	}
	if _, params, err := h.ContentType(); err == nil {
		return params["name"]
	}
	return ""
}
