// Package model defines the domain data structures shared by both pipelines:
// jobs, conversion and download requests, outcomes, and the typed errors that
// classify why a job failed. Requests validate themselves against the
// filesystem before a job is ever launched.
package model
