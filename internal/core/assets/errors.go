package assets

import "errors"

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrAssetTooLarge = errors.New("asset exceeds size limit")
	ErrLoaderClosed  = errors.New("loader closed")
)
