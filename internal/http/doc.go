// Package http provides HTTP handlers and middleware for the scheduler API.
//
// The router exposes the following endpoints:
//   - GET /health: liveness probe, never behind basic auth.
//   - GET /jobs, POST /jobs, GET/PUT/DELETE /jobs/{id}: job management exchanging the
//     `jobDTO` payload defined in job_handler.go. Writes answer with conflict warnings;
//     with strict conflicts a double booking fails with 409 and the warnings.
//   - GET /employees, POST /employees, PUT/DELETE /employees/{id}: crew management
//     exchanging the `employeeDTO` payload defined in employee_handler.go.
//   - GET /calendar?view=&date=&zoom=&employees=: a stateless day, week or month layout.
//   - GET /calendar.ics: internal jobs as an iCalendar feed.
//   - GET /export/week.xlsx?date=: the week's jobs with a revenue total.
//   - POST /import/jobs: multipart upload of an .xlsx or .xls job sheet.
//   - POST /views, GET/DELETE /views/{id}: server-held interactive views.
//   - POST /views/{id}/pointer: {"type":"down|move|up|cancel","x","y","target"?}.
//   - POST /views/{id}/nav: {"action":"prev|next|today|zoom_in|zoom_out|view|date","view","date"}.
//   - DELETE /views/{id}/events/{eventID}: optimistic delete through the view.
//   - GET /views/{id}/snapshot.png: the view rendered as an image.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
