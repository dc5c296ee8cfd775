// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package common holds the small cross-cutting pieces every other
// package in this engine depends on: the logging client interface,
// error sentinels, and command-code constants.
package common

import (
	"fmt"
	"log/slog"
	"os"
)

// LoggingClient is the logging seam used throughout the engine, in the
// same spirit as an EdgeX-style common.LoggingClient: callers pass
// already-formatted strings rather than structured key/value pairs.
type LoggingClient interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// slogClient is the default LoggingClient, backed by log/slog.
type slogClient struct {
	logger *slog.Logger
}

// NewLoggingClient builds the default slog-backed LoggingClient,
// writing to stderr.
func NewLoggingClient(serviceName string) LoggingClient {
	h := slog.NewTextHandler(os.Stderr, nil)
	return &slogClient{logger: slog.New(h).With("service", serviceName)}
}

func (c *slogClient) Debug(msg string) { c.logger.Debug(msg) }
func (c *slogClient) Info(msg string)  { c.logger.Info(msg) }
func (c *slogClient) Warn(msg string)  { c.logger.Warn(msg) }
func (c *slogClient) Error(msg string) { c.logger.Error(msg) }

// NopLoggingClient discards everything; used by tests that don't want
// log noise on stderr.
type NopLoggingClient struct{}

func (NopLoggingClient) Debug(string) {}
func (NopLoggingClient) Info(string)  {}
func (NopLoggingClient) Warn(string)  {}
func (NopLoggingClient) Error(string) {}

// Logf is a small convenience used all over this codebase to match the
// `LoggingClient.Info(fmt.Sprintf(...))` call shape without repeating
// fmt.Sprintf at every call site.
func Logf(lc LoggingClient, level string, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case "debug":
		lc.Debug(msg)
	case "warn":
		lc.Warn(msg)
	case "error":
		lc.Error(msg)
	default:
		lc.Info(msg)
	}
}
