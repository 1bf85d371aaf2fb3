package cart

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation")
	ErrPersistence = errors.New("persistence")
	ErrCorrupted   = errors.New("corrupted cart")

	ErrOutOfStock = fmt.Errorf("product out of stock: %w", ErrValidation)
)
