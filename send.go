package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Zachkp/portfolio/internal/forms"
	"github.com/Zachkp/portfolio/internal/relay"
	"github.com/spf13/cobra"
)

// newSendCmd pushes one submission through the configured relay, handy for
// checking endpoint settings after a deploy.
func newSendCmd(envFile *string) *cobra.Command {
	send := &cobra.Command{
		Use:   "send",
		Short: "Send a test submission through the form relay",
	}

	var name, email, message string
	contact := &cobra.Command{
		Use:   "contact",
		Short: "Send a contact message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			opts, _ := formOptions(cfg)
			f := forms.NewContactForm(relay.New(cfg.RelayTimeout), cfg.ContactEndpoint, opts...)
			defer f.Close()
			for field, v := range map[string]string{forms.FieldName: name, forms.FieldEmail: email, forms.FieldMessage: message} {
				if err := f.UpdateField(field, v); err != nil {
					return err
				}
			}
			err = f.Submit(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "contact: %s\n", f.Snapshot().Status)
			return err
		},
	}
	contact.Flags().StringVar(&name, "name", "", "sender name")
	contact.Flags().StringVar(&email, "email", "", "reply-to address")
	contact.Flags().StringVar(&message, "message", "", "message body")
	_ = contact.MarkFlagRequired("email")

	var details, file string
	inquiry := &cobra.Command{
		Use:   "inquiry",
		Short: "Send a project inquiry, optionally with an attachment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			_, opts := formOptions(cfg)
			f := forms.NewInquiryForm(relay.New(cfg.RelayTimeout), cfg.InquiryEndpoint, opts...)
			defer f.Close()
			for field, v := range map[string]string{forms.FieldName: name, forms.FieldEmail: email, forms.FieldProjectDetails: details} {
				if err := f.UpdateField(field, v); err != nil {
					return err
				}
			}
			if file != "" {
				att, err := readAttachmentFile(file)
				if err != nil {
					return err
				}
				f.SetAttachment(att)
			}
			err = f.Submit(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "inquiry: %s\n", f.Snapshot().Status)
			return err
		},
	}
	inquiry.Flags().StringVar(&name, "name", "", "sender name")
	inquiry.Flags().StringVar(&email, "email", "", "reply-to address")
	inquiry.Flags().StringVar(&details, "details", "", "project details")
	inquiry.Flags().StringVar(&file, "file", "", "path of a specification file to attach")
	_ = inquiry.MarkFlagRequired("email")

	send.AddCommand(contact, inquiry)
	return send
}

func readAttachmentFile(path string) (*forms.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &forms.Attachment{Filename: filepath.Base(path), ContentType: contentType, Data: data}, nil
}
