package thread

import "errors"

var (
	ErrEmptyComment          = errors.New("comment needs text or an attachment")
	ErrTextTooLong           = errors.New("comment text exceeds 300 characters")
	ErrInvalidUpload         = errors.New("upload needs a filename and data")
	ErrConflictingAttachment = errors.New("cannot replace and remove the attachment in one edit")
	ErrNotEditable           = errors.New("comment can no longer be edited")
	ErrNotExpandable         = errors.New("nested replies have no children panel")
	ErrCommentNotFound       = errors.New("comment not found in thread")
	ErrLoadInFlight          = errors.New("a fetch for this list is already in flight")
	ErrClosed                = errors.New("thread store is closed")

	// ErrInconsistentResponse is returned by Service implementations when the
	// comment service answered with a payload of the wrong shape.
	ErrInconsistentResponse = errors.New("inconsistent comment service response")
)
