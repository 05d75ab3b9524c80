package forms

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Zachkp/portfolio/internal/relay"
)

// DefaultInquiryResetAfter is how long the inquiry form shows its result.
const DefaultInquiryResetAfter = 7 * time.Second

// Multipart part names the relay receives for an inquiry.
const (
	PartName           = "name"
	PartEmail          = "email"
	PartProjectDetails = "Project Details"
	PartAttachment     = "Attachment"
)

// Attachment is a file chosen in the inquiry's file picker.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ProjectInquiry is the project inquiry draft, posted as multipart form data.
type ProjectInquiry struct {
	Name           string
	Email          string
	ProjectDetails string
	Attachment     *Attachment
}

// InquiryView is a point-in-time copy of an InquiryForm. PickerGeneration
// changes every time the file picker is reset, so a renderer keying the
// input on it gets a fresh control.
type InquiryView struct {
	Draft            ProjectInquiry
	Status           Status
	Pending          bool
	PickerGeneration uint64
}

// InquiryForm is safe for concurrent use.
type InquiryForm struct {
	m      machine[ProjectInquiry]
	picker atomic.Uint64
}

// NewInquiryForm returns an empty form that posts to endpoint.
func NewInquiryForm(sender Sender, endpoint string, opts ...Option) *InquiryForm {
	o := buildOptions(DefaultInquiryResetAfter, opts)
	f := &InquiryForm{}
	f.m = machine[ProjectInquiry]{
		clock:      o.clock,
		resetAfter: o.resetAfter,
		send: func(ctx context.Context, d ProjectInquiry) error {
			fields, file := d.parts()
			return sender.PostMultipart(ctx, endpoint, fields, file)
		},
		onSuccess: f.bumpPicker,
	}
	return f
}

func (d ProjectInquiry) parts() ([]relay.Field, *relay.File) {
	fields := []relay.Field{
		{Name: PartName, Value: d.Name},
		{Name: PartEmail, Value: d.Email},
		{Name: PartProjectDetails, Value: d.ProjectDetails},
	}
	if d.Attachment == nil {
		return fields, nil
	}
	return fields, &relay.File{
		FieldName:   PartAttachment,
		Filename:    d.Attachment.Filename,
		ContentType: d.Attachment.ContentType,
		Data:        d.Attachment.Data,
	}
}

// UpdateField sets one text field of the draft.
func (f *InquiryForm) UpdateField(name, value string) error {
	return f.m.update(func(d *ProjectInquiry) error {
		return d.set(name, value)
	})
}

func (d *ProjectInquiry) set(name, value string) error {
	switch name {
	case FieldName:
		d.Name = value
	case FieldEmail:
		d.Email = value
	case FieldProjectDetails:
		d.ProjectDetails = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// SetAttachment records the chosen file; nil clears the choice.
func (f *InquiryForm) SetAttachment(a *Attachment) {
	_ = f.m.update(func(d *ProjectInquiry) error {
		d.Attachment = a
		return nil
	})
}

// ResetPicker drops the chosen file and remounts the picker.
func (f *InquiryForm) ResetPicker() {
	f.SetAttachment(nil)
	f.bumpPicker()
}

func (f *InquiryForm) bumpPicker() { f.picker.Add(1) }

// Submit posts the current draft. See ContactForm.Submit.
func (f *InquiryForm) Submit(ctx context.Context) error {
	return f.m.submit(ctx)
}

// SubmitWith sets fields and the attachment, then submits, like
// ContactForm.SubmitWith. The attachment replaces the current choice,
// so nil sends the inquiry without a file.
func (f *InquiryForm) SubmitWith(ctx context.Context, fields map[string]string, a *Attachment) error {
	return f.m.submitWith(ctx, func(d *ProjectInquiry) error {
		for name, value := range fields {
			if err := d.set(name, value); err != nil {
				return err
			}
		}
		d.Attachment = a
		return nil
	})
}

// Snapshot copies the form's state.
func (f *InquiryForm) Snapshot() InquiryView {
	d, s, p := f.m.snapshot()
	return InquiryView{Draft: d, Status: s, Pending: p, PickerGeneration: f.picker.Load()}
}

// Close cancels a scheduled auto-clear.
func (f *InquiryForm) Close() { f.m.stop() }
