package fleet

import "errors"

var ErrFlightConflict = errors.New("flight already exists")
