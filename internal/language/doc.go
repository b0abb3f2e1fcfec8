// Package language normalizes user-supplied language hints into the ISO 639-1
// codes speech-to-text backends expect.
//
// Common languages resolve through a local table that also understands
// ISO 639-2 codes and English names ("german", "ger", "deu"). Anything else is
// parsed as an ISO 639 base tag with golang.org/x/text/language so less common
// codes are still validated instead of passed through blindly.
package language
