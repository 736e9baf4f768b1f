package service

import "errors"

var (
	ErrInvalidModel        = errors.New("unsupported model")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrChatNotFound        = errors.New("chat not found")
	ErrInvalidRole         = errors.New("invalid message role")
	ErrUnsupportedDocument = errors.New("unsupported document type, use .txt, .md or .markdown")
	ErrDocumentTooLarge    = errors.New("document too large")
	ErrEmptyDocument       = errors.New("document has no text")
	ErrInvalidURL          = errors.New("invalid url")
	ErrUpstream            = errors.New("upstream request failed")
)
