// Package http exposes the club CRM over a JSON API.
//
// The router serves:
//   - POST /sessions: issues a session token. Body: {"email","password"}.
//     The token is also returned in the `X-Session-Token` header and the
//     `session_token` cookie.
//   - GET, PUT, DELETE /sessions/current: current account, token rotation and
//     logout. DELETE /sessions/{token} lets an administrator revoke any token.
//   - /users: administrator managed staff accounts (`userDTO`); staff may read their own.
//   - /members, /members/stats, /members/{id}: the roster (`memberDTO`).
//   - /meetings, /meetings/{id}: meeting definitions (`meetingDTO`).
//     GET /meetings/calendar returns expanded occurrences with per-date counts
//     and GET /meetings/calendar.ics the same occurrences as iCalendar.
//   - GET /attendance, /attendance/matrix, /attendance/stats: records, the
//     trailing 30 day presence matrix and totals.
//   - POST /attendance/record and GET, POST /attendance/qr: public check-in
//     endpoints served with permissive CORS headers.
//
// Every route except POST /sessions, PUT and DELETE /sessions/current and the
// public check-in endpoints requires a valid session.
package http
