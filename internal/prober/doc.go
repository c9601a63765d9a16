// Package prober checks the reservation calendar for an open permit date.
//
// A check opens a fresh browser session, adds group members, advances the calendar to
// the requested month and then polls the rendered page, parsed with goquery, for the
// day cell labelled "<date> - Available". Control lookups that fail are logged and the
// check continues with whatever state the page is in. A missing day cell means the
// date is not yet available; it is not an error.
package prober
