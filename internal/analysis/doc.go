// Package analysis derives orbital characteristics from body states.
//
//   - [Primary]: the body another body is taken to orbit
//   - [ElementsOf]: two-body orbital elements relative to a primary
//   - [Report]: elements for every body in a set
//
// Elements are osculating: they describe the Keplerian orbit the body would
// follow if every other body vanished at this instant.
package analysis
