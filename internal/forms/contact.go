// Package forms holds the drafts behind the portfolio's contact and
// project-inquiry forms and drives their submit cycle:
// idle -> pending -> success|failure -> idle.
package forms

import (
	"context"
	"fmt"
	"time"

	"github.com/Zachkp/portfolio/internal/relay"
)

// DefaultContactResetAfter is how long the contact form shows its result.
const DefaultContactResetAfter = 5 * time.Second

// Draft field names accepted by UpdateField.
const (
	FieldName           = "name"
	FieldEmail          = "email"
	FieldMessage        = "message"
	FieldProjectDetails = "projectDetails"
)

// Sender delivers encoded drafts to the form relay. *relay.Client implements it.
type Sender interface {
	PostJSON(ctx context.Context, endpoint string, v any) error
	PostMultipart(ctx context.Context, endpoint string, fields []relay.Field, file *relay.File) error
}

// ContactMessage is the general contact draft, posted as JSON.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ContactView is a point-in-time copy of a ContactForm.
type ContactView struct {
	Draft   ContactMessage
	Status  Status
	Pending bool
}

// ContactForm is safe for concurrent use.
type ContactForm struct {
	m machine[ContactMessage]
}

// NewContactForm returns an empty form that posts to endpoint.
func NewContactForm(sender Sender, endpoint string, opts ...Option) *ContactForm {
	o := buildOptions(DefaultContactResetAfter, opts)
	f := &ContactForm{}
	f.m = machine[ContactMessage]{
		clock:      o.clock,
		resetAfter: o.resetAfter,
		send: func(ctx context.Context, d ContactMessage) error {
			return sender.PostJSON(ctx, endpoint, d)
		},
	}
	return f
}

// UpdateField sets one field of the draft.
func (f *ContactForm) UpdateField(name, value string) error {
	return f.m.update(func(d *ContactMessage) error {
		return d.set(name, value)
	})
}

func (d *ContactMessage) set(name, value string) error {
	switch name {
	case FieldName:
		d.Name = value
	case FieldEmail:
		d.Email = value
	case FieldMessage:
		d.Message = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// Submit posts the current draft. It returns ErrSubmissionPending without
// sending anything if a previous Submit has not resolved yet, otherwise the
// relay error, if any.
func (f *ContactForm) Submit(ctx context.Context) error {
	return f.m.submit(ctx)
}

// SubmitWith sets fields on the draft and submits it in one step. A call
// that finds a submission pending returns ErrSubmissionPending and leaves
// the draft as it was. An unknown field name aborts without any change.
func (f *ContactForm) SubmitWith(ctx context.Context, fields map[string]string) error {
	return f.m.submitWith(ctx, func(d *ContactMessage) error {
		for name, value := range fields {
			if err := d.set(name, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Snapshot copies the form's state.
func (f *ContactForm) Snapshot() ContactView {
	d, s, p := f.m.snapshot()
	return ContactView{Draft: d, Status: s, Pending: p}
}

// Close cancels a scheduled auto-clear. Submits resolving later schedule none.
func (f *ContactForm) Close() { f.m.stop() }
