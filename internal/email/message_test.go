package email

import (
	"strings"
	"testing"

	"github.com/shano/email-to-remarkable-sync/internal/sync"
)

// crlf joins lines with CRLF endings as they appear on the wire.
func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func TestPDFAttachments(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want []sync.Attachment
	}{
		{
			name: "single pdf attachment",
			raw: crlf(
				"From: sender@example.com",
				"To: sync@example.com",
				"Subject: invoice attached",
				"MIME-Version: 1.0",
				`Content-Type: multipart/mixed; boundary="frontier"`,
				"",
				"--frontier",
				"Content-Type: text/plain",
				"",
				"see attached",
				"--frontier",
				`Content-Type: application/pdf; name="invoice.pdf"`,
				`Content-Disposition: attachment; filename="invoice.pdf"`,
				"Content-Transfer-Encoding: base64",
				"",
				"JVBERi0xLjQ=",
				"--frontier--",
			),
			want: []sync.Attachment{
				{Filename: "invoice.pdf", Data: []byte("%PDF-1.4")},
			},
		},
		{
			name: "plain text only",
			raw: crlf(
				"From: sender@example.com",
				"Subject: just words",
				"Content-Type: text/plain",
				"",
				"no attachments here",
			),
			want: nil,
		},
		{
			name: "pdf kept, image dropped",
			raw: crlf(
				"From: sender@example.com",
				"Subject: mixed bag",
				"MIME-Version: 1.0",
				`Content-Type: multipart/mixed; boundary="bb"`,
				"",
				"--bb",
				`Content-Type: image/png; name="logo.png"`,
				`Content-Disposition: attachment; filename="logo.png"`,
				"Content-Transfer-Encoding: base64",
				"",
				"iVBORw0KGgo=",
				"--bb",
				`Content-Type: application/pdf; name="doc.pdf"`,
				`Content-Disposition: attachment; filename="doc.pdf"`,
				"Content-Transfer-Encoding: base64",
				"",
				"JVBERi0xLjQ=",
				"--bb--",
			),
			want: []sync.Attachment{
				{Filename: "doc.pdf", Data: []byte("%PDF-1.4")},
			},
		},
		{
			name: "octet-stream named like a pdf is not a pdf",
			raw: crlf(
				"From: sender@example.com",
				"Subject: disguised",
				"MIME-Version: 1.0",
				`Content-Type: multipart/mixed; boundary="bb"`,
				"",
				"--bb",
				`Content-Type: application/octet-stream; name="maybe.pdf"`,
				`Content-Disposition: attachment; filename="maybe.pdf"`,
				"Content-Transfer-Encoding: base64",
				"",
				"JVBERi0xLjQ=",
				"--bb--",
			),
			want: nil,
		},
		{
			name: "inline pdf part kept",
			raw: crlf(
				"From: sender@example.com",
				"Subject: embedded",
				"MIME-Version: 1.0",
				`Content-Type: multipart/mixed; boundary="bb"`,
				"",
				"--bb",
				`Content-Type: application/pdf; name="preview.pdf"`,
				"Content-Disposition: inline",
				"Content-Transfer-Encoding: base64",
				"",
				"JVBERi0xLjQ=",
				"--bb--",
			),
			want: []sync.Attachment{
				{Filename: "preview.pdf", Data: []byte("%PDF-1.4")},
			},
		},
		{
			name: "inline disposition filename preferred over name param",
			raw: crlf(
				"From: sender@example.com",
				"Subject: embedded",
				"MIME-Version: 1.0",
				`Content-Type: multipart/mixed; boundary="bb"`,
				"",
				"--bb",
				`Content-Type: application/pdf; name="ignored.pdf"`,
				`Content-Disposition: inline; filename="statement.pdf"`,
				"Content-Transfer-Encoding: base64",
				"",
				"JVBERi0xLjQ=",
				"--bb--",
			),
			want: []sync.Attachment{
				{Filename: "statement.pdf", Data: []byte("%PDF-1.4")},
			},
		},
		{
			name: "pdf without disposition header kept",
			raw: crlf(
				"From: sender@example.com",
				"Subject: bare part",
				"MIME-Version: 1.0",
				`Content-Type: multipart/mixed; boundary="bb"`,
				"",
				"--bb",
				`Content-Type: application/pdf; name="invoice.pdf"`,
				"Content-Transfer-Encoding: base64",
				"",
				"JVBERi0xLjQ=",
				"--bb--",
			),
			want: []sync.Attachment{
				{Filename: "invoice.pdf", Data: []byte("%PDF-1.4")},
			},
		},
		{
			name: "attachment without filename skipped",
			raw: crlf(
				"From: sender@example.com",
				"Subject: nameless",
				"MIME-Version: 1.0",
				`Content-Type: multipart/mixed; boundary="bb"`,
				"",
				"--bb",
				"Content-Type: application/pdf",
				"Content-Disposition: attachment",
				"Content-Transfer-Encoding: base64",
				"",
				"JVBERi0xLjQ=",
				"--bb--",
			),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pdfAttachments(tt.raw)
			if err != nil {
				t.Fatalf("pdfAttachments() error = %v, expected nil", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("pdfAttachments() returned %d attachments, expected %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if got[i].Filename != want.Filename {
					t.Errorf("attachment[%d].Filename = %q, expected %q", i, got[i].Filename, want.Filename)
				}
				if string(got[i].Data) != string(want.Data) {
					t.Errorf("attachment[%d].Data = %q, expected %q", i, got[i].Data, want.Data)
				}
			}
		})
	}
}

func TestPDFAttachmentsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{
			name: "not a mime message",
			raw:  crlf("this is not a mime header", "", "body"),
		},
		{
			name: "corrupt base64 attachment body",
			raw: crlf(
				"From: sender@example.com",
				"Subject: broken",
				"MIME-Version: 1.0",
				`Content-Type: multipart/mixed; boundary="bb"`,
				"",
				"--bb",
				`Content-Type: application/pdf; name="bad.pdf"`,
				`Content-Disposition: attachment; filename="bad.pdf"`,
				"Content-Transfer-Encoding: base64",
				"",
				"!!!! not base64 !!!!",
				"--bb--",
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pdfAttachments(tt.raw)
			if err == nil {
				t.Fatal("pdfAttachments() error = nil, expected extraction error")
			}
			if !sync.IsExtractionError(err) {
				t.Errorf("IsExtractionError(%v) = false, expected true", err)
			}
		})
	}
}

func TestDecodeSubject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain ascii",
			input:    "Weekly report",
			expected: "Weekly report",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
		{
			name:     "base64 encoded word",
			input:    "=?UTF-8?B?8J+TiiBSZXBvcnQ=?=",
			expected: "\U0001F4CA Report",
		},
		{
			name:     "quoted printable encoded word",
			input:    "=?utf-8?q?caf=C3=A9?=",
			expected: "café",
		},
		{
			name:     "unknown charset falls back to raw",
			input:    "=?x-unknown?B?YWJj?=",
			expected: "=?x-unknown?B?YWJj?=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := decodeSubject(tt.input)
			if result != tt.expected {
				t.Errorf("decodeSubject(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}
