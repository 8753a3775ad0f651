package lifecycle

import "errors"

var ErrNoOrders = errors.New("no orders")
