// Package note parses study-note text into typed presentation blocks.
//
// The note dialect is line oriented: "##" headings (optionally numbered with
// circled or ASCII numbers), "|"-delimited tables with an optional "---"
// separator row, Spanish lines immediately followed by their Chinese
// translation, and free-form lines. Parsing never fails; anything the rules
// don't recognize becomes a plain block.
package note
