// Package calendar implements the interactive scheduling grid used by the
// dispatch board: time/pixel geometry, event styling, the drag-to-select,
// drag-to-move and drag-to-resize engines, day/week/month layout and the
// Calendar orchestrator that owns view state and optimistic edits.
//
// Nothing in this package performs I/O. Persistence, notifications and the
// create/edit form are injected through the Saver, Notifier and ModalOpener
// interfaces so the same engines can be driven by an HTTP session, a test
// harness or any other renderer that can map pointer coordinates to columns.
package calendar
