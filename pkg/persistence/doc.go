// Package persistence stores discovered module definitions on disk so a
// bus catalog survives restarts and discovery does not have to be re-run.
//
// The definition file is a JSON array of module definitions; the file
// format stays readable and diffable so operators can inspect and hand-edit
// catalogs.
package persistence
