// Package convert implements the conversion job: probe the source duration,
// run the transcoder with machine-readable progress on stdout, map elapsed
// output time to a percentage and check that the output file exists.
package convert
