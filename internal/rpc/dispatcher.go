package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sunbird89629/pip-plugin/internal/logger"
	"github.com/sunbird89629/pip-plugin/internal/pip"
)

// ErrUnknownMethod is returned for method names the plugin does not handle.
var ErrUnknownMethod = errors.New("rpc: method not implemented")

// Method names accepted from the host.
const (
	MethodGetPlatformVersion = "getPlatformVersion"
	MethodIsPipSupported     = "isPipSupported"
	MethodSetupPip           = "setupPip"
	MethodUpdatePip          = "updatePip"
	MethodStartPip           = "startPip"
	MethodStopPip            = "stopPip"
	MethodUpdateText         = "updateText"
)

// Executor runs a function against the controller on the thread that owns
// it and returns the function's error.
type Executor func(f func(c *pip.Controller) error) error

// Dispatcher maps method calls onto controller operations.
type Dispatcher struct {
	exec    Executor
	version func() string
	log     *zerolog.Logger
}

// NewDispatcher creates a Dispatcher. version supplies the
// getPlatformVersion result.
func NewDispatcher(exec Executor, version func() string) *Dispatcher {
	return &Dispatcher{
		exec:    exec,
		version: version,
		log:     logger.WithComponent("rpc"),
	}
}

// Methods lists the method names Dispatch understands.
func Methods() []string {
	return []string{
		MethodGetPlatformVersion,
		MethodIsPipSupported,
		MethodSetupPip,
		MethodUpdatePip,
		MethodStartPip,
		MethodStopPip,
		MethodUpdateText,
	}
}

// Dispatch executes one request and builds its response.
func (d *Dispatcher) Dispatch(req Request) Response {
	result, err := d.call(req.Method, req.Args)
	if err == nil {
		return Response{ID: req.ID, Result: result}
	}

	switch {
	case errors.Is(err, pip.ErrNotReady), errors.Is(err, pip.ErrMalformedArgument):
		d.log.Debug().Err(err).Str("method", req.Method).Msg("Call rejected")
		return Response{ID: req.ID, Result: false}
	case errors.Is(err, ErrUnknownMethod):
		d.log.Warn().Str("method", req.Method).Msg("Unknown method")
		return Response{ID: req.ID, Error: &Error{Code: CodeNotImplemented, Message: req.Method}}
	case errors.Is(err, pip.ErrResourceCreation):
		d.log.Error().Err(err).Str("method", req.Method).Msg("Native resource creation failed")
		return Response{ID: req.ID, Error: &Error{Code: CodeResourceCreationFailed, Message: err.Error()}}
	default:
		d.log.Error().Err(err).Str("method", req.Method).Msg("Call failed")
		return Response{ID: req.ID, Error: &Error{Code: CodeInternal, Message: err.Error()}}
	}
}

func (d *Dispatcher) call(method string, raw json.RawMessage) (any, error) {
	switch method {
	case MethodGetPlatformVersion:
		return d.version(), nil

	case MethodIsPipSupported:
		var supported bool
		err := d.exec(func(c *pip.Controller) error {
			supported = c.IsSupported()
			return nil
		})
		return supported, err

	case MethodSetupPip:
		// every key is optional, so anything that is not a map means defaults
		args, _ := decodeArgs(raw)
		p, skipped := pip.DecodePatch(args)
		if skipped != nil {
			d.log.Debug().Err(skipped).Msg("Skipped malformed setup fields")
		}
		return true, d.exec(func(c *pip.Controller) error { return c.Setup(p) })

	case MethodUpdatePip:
		args, err := decodeArgs(raw)
		if err != nil {
			return nil, err
		}
		p, skipped := pip.DecodePatch(args)
		if skipped != nil {
			d.log.Debug().Err(skipped).Msg("Skipped malformed update fields")
		}
		return true, d.exec(func(c *pip.Controller) error { return c.Update(p) })

	case MethodStartPip:
		return true, d.exec(func(c *pip.Controller) error { return c.Start() })

	case MethodStopPip:
		return true, d.exec(func(c *pip.Controller) error { return c.Stop() })

	case MethodUpdateText:
		args, err := decodeArgs(raw)
		if err != nil {
			return nil, err
		}
		text, err := pip.TextArgument(args)
		if err != nil {
			return nil, err
		}
		return true, d.exec(func(c *pip.Controller) error { return c.UpdateText(text) })
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
}

// decodeArgs parses the argument payload as a JSON object. Absent, null
// and non-object payloads are malformed.
func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: no arguments", pip.ErrMalformedArgument)
	}
	var args map[string]any
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, fmt.Errorf("%w: arguments: %v", pip.ErrMalformedArgument, err)
	}
	return args, nil
}
