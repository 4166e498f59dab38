package commands

import (
	"errors"
	"log/slog"

	"github.com/dotcommander/keyward/internal/app"
	"github.com/dotcommander/keyward/internal/store"
)

type printedError struct {
	err error
}

func (e printedError) Error() string {
	// cmdErr already logged the underlying error.
	return "error already printed"
}

func (e printedError) Unwrap() error { return e.err }

func openRegistry() (*store.Registry, func(), error) {
	path, err := app.GetRegistryPath()
	if err != nil {
		return nil, nil, err
	}

	reg, err := store.OpenRegistry(path)
	if err != nil {
		return nil, nil, err
	}

	return reg, func() { _ = reg.Close() }, nil
}

func withRegistry(fn func(reg *store.Registry) error) error {
	reg, closeReg, err := openRegistry()
	if err != nil {
		return cmdErr(err)
	}
	defer closeReg()

	if err := fn(reg); err != nil {
		return cmdErr(err)
	}
	return nil
}

func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	var already printedError
	if errors.As(err, &already) {
		return err
	}
	slog.Error("command error", "error", err.Error())
	return printedError{err: err}
}
