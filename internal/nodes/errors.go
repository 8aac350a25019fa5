package nodes

import "errors"

// Ошибки реестра и узлов.
var (
	// ErrUnregistered — тип узла не зарегистрирован.
	ErrUnregistered = errors.New("node type not registered")

	// ErrAlreadyRegistered — тип узла уже зарегистрирован.
	ErrAlreadyRegistered = errors.New("node type already registered")

	// ErrInvalidDescriptor — некорректная декларация типа узла.
	ErrInvalidDescriptor = errors.New("invalid node descriptor")

	// ErrInvalidParameters — невалидные параметры узла.
	ErrInvalidParameters = errors.New("invalid node parameters")
)
