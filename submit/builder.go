// Package submit builds validated submission payloads from a user-supplied
// attachment and auxiliary form fields.
//
// Build performs no I/O. Validation fails fast on the first violated rule in
// this fixed order:
//  1. attachment present
//  2. media type has an allowed prefix
//  3. size within the ceiling
//  4. content decodes as an image (only when Constraints.VerifyImage is set)
//  5. required fields present and non-blank
//  6. field patterns match
package submit

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
)

// MaxAttachmentBytes is the default attachment ceiling (16 MiB).
const MaxAttachmentBytes = 16 * 1024 * 1024

// DriveLinkField is the form field carrying the Google Drive folder link.
const DriveLinkField = "drive_link"

// driveFolderPattern matches a Google Drive folder link.
var driveFolderPattern = regexp.MustCompile(`drive\.google\.com/drive/folders/`)

// folderIDPattern extracts the folder token from a Drive folder link.
var folderIDPattern = regexp.MustCompile(`/folders/([a-zA-Z0-9_-]+)`)

// Attachment is the binary part of a submission.
type Attachment struct {
	// Name is the file name sent with the multipart part.
	Name string
	// ContentType is the declared media type, e.g. "image/jpeg".
	ContentType string
	// Data is the raw content.
	Data []byte
}

// Size returns the attachment size in bytes.
func (a *Attachment) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Data))
}

// FieldRule constrains one auxiliary field.
type FieldRule struct {
	// Name is the form field name.
	Name string
	// Label is the human-readable name used in validation messages.
	Label string
	// Pattern must match the (trimmed) value when set.
	Pattern *regexp.Regexp
	// Required rejects an absent or blank value.
	Required bool
}

func (r FieldRule) label() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Name
}

// Constraints is the validation configuration.
type Constraints struct {
	// AllowedTypePrefixes lists accepted media type prefixes ("image/").
	AllowedTypePrefixes []string
	// MaxBytes is the attachment size ceiling.
	MaxBytes int64
	// Fields are checked in order: all presence checks, then all patterns.
	Fields []FieldRule
	// VerifyImage additionally requires the content to decode as an image.
	VerifyImage bool
}

// DefaultConstraints returns the photo extraction form constraints.
func DefaultConstraints() Constraints {
	return Constraints{
		AllowedTypePrefixes: []string{"image/"},
		MaxBytes:            MaxAttachmentBytes,
		Fields: []FieldRule{
			{
				Name:     DriveLinkField,
				Label:    "Google Drive folder link",
				Pattern:  driveFolderPattern,
				Required: true,
			},
		},
	}
}

// Payload is a validated, immutable submission.
type Payload struct {
	name        string
	contentType string
	data        []byte
	fields      map[string]string
}

// Name returns the attachment file name.
func (p *Payload) Name() string { return p.name }

// ContentType returns the attachment media type.
func (p *Payload) ContentType() string { return p.contentType }

// Data returns the attachment bytes. Callers must not modify the slice.
func (p *Payload) Data() []byte { return p.data }

// Size returns the attachment size in bytes.
func (p *Payload) Size() int64 { return int64(len(p.data)) }

// Field returns an auxiliary field value.
func (p *Payload) Field(name string) (string, bool) {
	v, ok := p.fields[name]
	return v, ok
}

// FieldNames returns the auxiliary field names in sorted order.
func (p *Payload) FieldNames() []string {
	names := make([]string, 0, len(p.fields))
	for name := range p.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build validates the attachment and fields and returns an immutable payload
// holding a copy of the attachment bytes.
func Build(att *Attachment, fields map[string]string, c Constraints) (*Payload, error) {
	if att == nil || (att.Name == "" && len(att.Data) == 0) {
		return nil, &ValidationError{Rule: RuleAttachmentMissing, Message: "please attach a selfie image"}
	}

	if !hasAllowedPrefix(att.ContentType, c.AllowedTypePrefixes) {
		return nil, &ValidationError{
			Rule:    RuleAttachmentType,
			Message: fmt.Sprintf("media type %q is not accepted (allowed: %s)", att.ContentType, strings.Join(c.AllowedTypePrefixes, ", ")),
		}
	}

	if c.MaxBytes > 0 && att.Size() > c.MaxBytes {
		return nil, &ValidationError{
			Rule:    RuleAttachmentSize,
			Message: fmt.Sprintf("attachment is %d bytes, limit is %d bytes", att.Size(), c.MaxBytes),
		}
	}

	if c.VerifyImage {
		if _, err := imaging.Decode(bytes.NewReader(att.Data)); err != nil {
			return nil, &ValidationError{
				Rule:    RuleAttachmentUndecodable,
				Message: fmt.Sprintf("attachment is not a readable image: %v", err),
			}
		}
	}

	trimmed := make(map[string]string, len(fields))
	for name, value := range fields {
		trimmed[name] = strings.TrimSpace(value)
	}

	for _, rule := range c.Fields {
		if rule.Required && trimmed[rule.Name] == "" {
			return nil, &ValidationError{
				Rule:    RuleFieldMissing,
				Field:   rule.Name,
				Message: fmt.Sprintf("please enter your %s", rule.label()),
			}
		}
	}

	for _, rule := range c.Fields {
		value, ok := trimmed[rule.Name]
		if !ok || value == "" || rule.Pattern == nil {
			continue
		}
		if !rule.Pattern.MatchString(value) {
			return nil, &ValidationError{
				Rule:    RuleFieldPattern,
				Field:   rule.Name,
				Message: fmt.Sprintf("please enter a valid %s", rule.label()),
			}
		}
	}

	data := make([]byte, len(att.Data))
	copy(data, att.Data)

	return &Payload{
		name:        att.Name,
		contentType: att.ContentType,
		data:        data,
		fields:      trimmed,
	}, nil
}

func hasAllowedPrefix(contentType string, prefixes []string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	for _, prefix := range prefixes {
		if strings.HasPrefix(ct, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// FolderID extracts the folder token from a Google Drive folder link.
// Returns "" when the link carries no folder segment.
func FolderID(link string) string {
	m := folderIDPattern.FindStringSubmatch(link)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
