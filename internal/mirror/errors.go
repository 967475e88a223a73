package mirror

import "errors"

// ErrNoHandler is returned by Config.Validate when a Sync declares none
// of action/attrib/create/modify/delete/move (spec.md §6 Configuration
// surface).
var ErrNoHandler = errors.New("mirror: sync must configure at least one of action, attrib, create, modify, delete, move")
