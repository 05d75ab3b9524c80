package server

import (
	"fmt"
	"html/template"

	"github.com/Zachkp/portfolio/internal/forms"
)

var templateFuncs = template.FuncMap{
	"showsResult": func(s forms.Status) bool {
		return s == forms.StatusSuccess || s == forms.StatusFailure
	},
	"isSuccess": func(s forms.Status) bool { return s == forms.StatusSuccess },
	"isFailure": func(s forms.Status) bool { return s == forms.StatusFailure },
	"pickerID": func(gen uint64) string {
		return fmt.Sprintf("file-attachment-%d", gen)
	},
	"attachmentName": func(a *forms.Attachment) string {
		if a == nil {
			return ""
		}
		return a.Filename
	},
}
