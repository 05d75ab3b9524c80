package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Zachkp/portfolio/internal/forms"
	"github.com/Zachkp/portfolio/internal/relay"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const attachmentInput = "attachment"

// formOverhead is the body allowance for the inquiry's text parts on top of
// the attachment limit.
const formOverhead = 1 << 20

var errAttachmentTooLarge = errors.New("attachment too large")

// pollSlack keeps the status poll from landing just before the auto-clear.
const pollSlack = 250 * time.Millisecond

var (
	contactFields = []string{forms.FieldName, forms.FieldEmail, forms.FieldMessage}
	inquiryFields = []string{forms.FieldName, forms.FieldEmail, forms.FieldProjectDetails}
)

type contactData struct {
	View   forms.ContactView
	PollMS int64
}

type inquiryData struct {
	View   forms.InquiryView
	PollMS int64
	Notice string
}

func (s *Server) contactData(v forms.ContactView) contactData {
	return contactData{View: v, PollMS: (s.cfg.ContactResetAfter + pollSlack).Milliseconds()}
}

func (s *Server) inquiryData(v forms.InquiryView) inquiryData {
	return inquiryData{View: v, PollMS: (s.cfg.InquiryResetAfter + pollSlack).Milliseconds()}
}

// fieldUpdater is the UpdateField half of either form.
type fieldUpdater interface {
	UpdateField(name, value string) error
}

// postedFields collects the draft fields present in the request body.
func postedFields(c *gin.Context, names []string) map[string]string {
	fields := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := c.GetPostForm(name); ok {
			fields[name] = v
		}
	}
	return fields
}

// updateOneField handles the per-input HTMX change event. htmx names the
// input that fired in HX-Trigger-Name; plain posts name it in "field".
func updateOneField(c *gin.Context, f fieldUpdater) {
	name := c.GetHeader("HX-Trigger-Name")
	if name == "" {
		name = c.PostForm("field")
	}
	value, ok := c.GetPostForm(name)
	if !ok {
		c.Status(http.StatusBadRequest)
		return
	}
	if err := f.UpdateField(name, value); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// submitContext detaches the relay call from the visitor's request so a
// closed tab does not abort a submission halfway.
func submitContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func (s *Server) logSubmit(form string, err error) {
	switch {
	case err == nil:
		s.log.Info("form submitted", zap.String("form", form))
	case errors.Is(err, relay.ErrRejected):
		s.log.Debug("relay rejected submission", zap.String("form", form), zap.Error(err))
	case errors.Is(err, relay.ErrTransport):
		s.log.Debug("relay unreachable", zap.String("form", form), zap.Error(err))
	default:
		s.log.Debug("submission failed", zap.String("form", form), zap.Error(err))
	}
}

func (s *Server) handleContactField(c *gin.Context) {
	updateOneField(c, formsFrom(c).Contact)
}

func (s *Server) handleContactSubmit(c *gin.Context) {
	form := formsFrom(c).Contact

	err := form.SubmitWith(submitContext(c), postedFields(c, contactFields))
	if errors.Is(err, forms.ErrSubmissionPending) {
		c.HTML(http.StatusConflict, "contact-form", s.contactData(form.Snapshot()))
		return
	}
	s.logSubmit("contact", err)
	c.HTML(http.StatusOK, "contact-form", s.contactData(form.Snapshot()))
}

func (s *Server) handleContactStatus(c *gin.Context) {
	c.HTML(http.StatusOK, "contact-status", s.contactData(formsFrom(c).Contact.Snapshot()))
}

func (s *Server) handleInquiryField(c *gin.Context) {
	updateOneField(c, formsFrom(c).Inquiry)
}

func (s *Server) handleInquirySubmit(c *gin.Context) {
	form := formsFrom(c).Inquiry
	limit := s.cfg.MaxAttachmentBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)

	// The posted picker is authoritative: no file part means nothing is chosen.
	att, err := readAttachment(c, limit)
	if errors.Is(err, errAttachmentTooLarge) {
		s.log.Info("attachment over limit", zap.Int64("limit", limit))
		data := s.inquiryData(form.Snapshot())
		data.Notice = fmt.Sprintf("That file is too large. Attachments can be up to %s.", humanize.IBytes(uint64(limit)))
		c.HTML(http.StatusRequestEntityTooLarge, "inquiry-form", data)
		return
	}
	if err != nil {
		s.log.Warn("unreadable attachment", zap.Error(err))
		c.HTML(http.StatusBadRequest, "inquiry-form", s.inquiryData(form.Snapshot()))
		return
	}

	err = form.SubmitWith(submitContext(c), postedFields(c, inquiryFields), att)
	if errors.Is(err, forms.ErrSubmissionPending) {
		c.HTML(http.StatusConflict, "inquiry-form", s.inquiryData(form.Snapshot()))
		return
	}
	s.logSubmit("inquiry", err)
	c.HTML(http.StatusOK, "inquiry-form", s.inquiryData(form.Snapshot()))
}

func (s *Server) handleInquiryStatus(c *gin.Context) {
	c.HTML(http.StatusOK, "inquiry-status", s.inquiryData(formsFrom(c).Inquiry.Snapshot()))
}

func readAttachment(c *gin.Context, limit int64) (*forms.Attachment, error) {
	fh, err := c.FormFile(attachmentInput)
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return nil, errAttachmentTooLarge
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", attachmentInput, err)
	}
	if fh.Filename == "" && fh.Size == 0 {
		return nil, nil
	}
	if fh.Size > limit {
		return nil, errAttachmentTooLarge
	}
	return loadAttachment(fh)
}

func loadAttachment(fh *multipart.FileHeader) (*forms.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return &forms.Attachment{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
