// Package preflight provides readiness checks for the paths a monitor run
// depends on.
//
// These checks run in two contexts:
//   - The CLI "cybele check" command runs RunAll and prints every result.
//   - Operators can call the individual checks (CheckOutputDir,
//     CheckSourceFile, CheckWriterLock) to diagnose a single path.
//
// A failed check never modifies the filesystem; the output directory is only
// created by the monitor itself.
package preflight
