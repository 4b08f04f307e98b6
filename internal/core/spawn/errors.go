package spawn

import "errors"

var ErrPrototypeNotReady = errors.New("prototype not ready")
