package tracker

import "errors"

var (
	// ErrChainExists — chain с таким id уже зарегистрирован.
	ErrChainExists = errors.New("chain already exists")

	// ErrChainNotFound — chain с таким id не найден.
	ErrChainNotFound = errors.New("chain not found")
)
