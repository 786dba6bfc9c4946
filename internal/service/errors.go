package service

import "errors"

var (
	ErrAssetTooLarge = errors.New("asset exceeds upload size limit")
	ErrNotAnImage    = errors.New("asset is not a supported image")

	ErrPreviewInvalidURL = errors.New("preview url is invalid")
	ErrPreviewBlocked    = errors.New("preview url is blocked")
	ErrPreviewTimeout    = errors.New("preview fetch timed out")
)
