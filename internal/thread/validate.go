package thread

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxTextLength is the longest comment body the service accepts, in runes.
const MaxTextLength = 300

var validate = validator.New()

// Draft is the input of AddComment.
type Draft struct {
	Text   string
	Upload *Upload
}

type draftInput struct {
	Text   string  `validate:"required_without=Upload,max=300"`
	Upload *Upload `validate:"required_without=Text"`
}

type editInput struct {
	Text string `validate:"max=300"`
}

func validateDraft(d Draft) (Draft, error) {
	d.Text = strings.TrimSpace(d.Text)
	if err := mapValidation(validate.Struct(draftInput{Text: d.Text, Upload: d.Upload})); err != nil {
		return d, err
	}
	if d.Upload != nil {
		if err := mapValidation(validate.Struct(d.Upload)); err != nil {
			return d, err
		}
	}
	return d, nil
}

func validateEdit(e CommentEdit) (CommentEdit, error) {
	if e.Upload != nil && e.RemoveAttachment {
		return e, ErrConflictingAttachment
	}
	e.Text = strings.TrimSpace(e.Text)
	if err := mapValidation(validate.Struct(editInput{Text: e.Text})); err != nil {
		return e, err
	}
	if e.Upload != nil {
		if err := mapValidation(validate.Struct(e.Upload)); err != nil {
			return e, err
		}
	}
	return e, nil
}

func mapValidation(err error) error {
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) || len(vErrs) == 0 {
		return err
	}
	first := vErrs[0]
	switch {
	case first.Field() == "Text" && first.Tag() == "max":
		return ErrTextTooLong
	case first.Tag() == "required_without":
		return ErrEmptyComment
	default:
		return ErrInvalidUpload
	}
}
