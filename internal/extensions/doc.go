// Package extensions discovers plugin units in the extensions directory and
// lets each one register commands.
//
// A unit is a file whose suffix has an Opener (".so" Go plugins and ".yaml"/
// ".yml" script manifests by default). Names starting with "_" are skipped.
// A failing unit is reported and never stops the others from loading.
package extensions
