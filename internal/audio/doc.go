// Package audio plays synthesized 16-bit mono PCM through the system audio
// device using oto/v3.
package audio
